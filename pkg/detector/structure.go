package detector

import "github.com/mapsproj/maps/pkg/document"

// StructureReport describes a document's observable structure. It is a
// diagnostic companion to Detect for manual classification of documents
// that matched no case.
type StructureReport struct {
	Format            document.Format    `json:"format"`
	RootTag           string             `json:"root_tag,omitempty"`
	Signature         document.Signature `json:"signature"`
	TotalElements     int                `json:"total_elements,omitempty"`
	ElementCounts     map[string]int     `json:"element_counts,omitempty"`
	HasResponseHeader bool               `json:"has_response_header"`
	HasReadingSession bool               `json:"has_reading_session"`
	HasUnblindedRead  bool               `json:"has_unblinded_read"`
	ReadingSessions   int                `json:"reading_sessions"`
	IsLIDC            bool               `json:"is_lidc_format"`
}

// AnalyzeStructure builds a StructureReport for any addressable document.
// Element counts are available for XML sources only.
func AnalyzeStructure(doc document.AddressableDocument) StructureReport {
	rep := StructureReport{
		Format:            doc.Format(),
		RootTag:           doc.Root(),
		Signature:         doc.Signature(),
		HasResponseHeader: doc.Exists("ResponseHeader"),
		HasReadingSession: doc.Exists("readingSession"),
		HasUnblindedRead: doc.Exists("unblindedReadNodule") ||
			doc.Exists("readingSession/unblindedReadNodule"),
		ReadingSessions: doc.Count("readingSession"),
		IsLIDC:          doc.Root() == "LidcReadMessage",
	}
	if xdoc, ok := doc.(*document.XMLDocument); ok {
		counts := xdoc.ElementCounts()
		rep.ElementCounts = counts
		for _, n := range counts {
			rep.TotalElements += n
		}
	}
	return rep
}
