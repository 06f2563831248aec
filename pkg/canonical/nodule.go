package canonical

import "math"

// Characteristic names carried by LIDC-style reading sessions. Each is an
// ordinal rating assigned independently by every reader.
const (
	CharSubtlety          = "subtlety"
	CharInternalStructure = "internalStructure"
	CharCalcification     = "calcification"
	CharSphericity        = "sphericity"
	CharMargin            = "margin"
	CharLobulation        = "lobulation"
	CharSpiculation       = "spiculation"
	CharTexture           = "texture"
	CharMalignancy        = "malignancy"
)

// CharacteristicNames lists all known ordinal characteristics in canonical
// order.
var CharacteristicNames = []string{
	CharSubtlety,
	CharInternalStructure,
	CharCalcification,
	CharSphericity,
	CharMargin,
	CharLobulation,
	CharSpiculation,
	CharTexture,
	CharMalignancy,
}

// CharacteristicRange returns the span of the ordinal scale for a named
// characteristic. Most LIDC characteristics run 1..5; calcification runs
// 1..6 and internalStructure 1..4. Unknown names assume a span of 4.
func CharacteristicRange(name string) float64 {
	switch name {
	case CharCalcification:
		return 5
	case CharInternalStructure:
		return 3
	default:
		return 4
	}
}

// Point is one contour vertex on a single image slice.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ROI is one reader-drawn region of interest on one slice.
type ROI struct {
	SliceUID string  `json:"slice_uid,omitempty"`
	Z        float64 `json:"z"`
	Points   []Point `json:"points"`
}

// Centroid3 is a spatial centroid in image coordinates.
type Centroid3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SliceRange is the inclusive z-extent covered by an annotation's ROIs.
type SliceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Overlaps reports whether two slice ranges share any extent.
func (s SliceRange) Overlaps(o SliceRange) bool {
	return s.Min <= o.Max && o.Min <= s.Max
}

// NoduleAnnotation is one reader's recorded finding: the ordinal
// characteristic ratings plus the per-slice region contours. FindingID is
// the explicit same-finding linkage some sources provide; empty when the
// source has none.
type NoduleAnnotation struct {
	NoduleID        string         `json:"nodule_id"`
	ReaderID        string         `json:"reader_id"`
	FindingID       string         `json:"finding_id,omitempty"`
	Characteristics map[string]int `json:"characteristics,omitempty"`
	ROIs            []ROI          `json:"rois,omitempty"`
	Centroid        Centroid3      `json:"centroid"`
	Slices          SliceRange     `json:"slices"`
}

// ComputeGeometry derives the centroid and slice range from the ROI contour
// points. Annotations with no points keep zero geometry.
func (n *NoduleAnnotation) ComputeGeometry() {
	var sx, sy, sz float64
	count := 0
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, roi := range n.ROIs {
		if roi.Z < minZ {
			minZ = roi.Z
		}
		if roi.Z > maxZ {
			maxZ = roi.Z
		}
		for _, p := range roi.Points {
			sx += p.X
			sy += p.Y
			sz += roi.Z
			count++
		}
	}
	if count == 0 {
		return
	}
	n.Centroid = Centroid3{X: sx / float64(count), Y: sy / float64(count), Z: sz / float64(count)}
	n.Slices = SliceRange{Min: minZ, Max: maxZ}
}

// Distance returns the euclidean distance between two centroids.
func (c Centroid3) Distance(o Centroid3) float64 {
	dx, dy, dz := c.X-o.X, c.Y-o.Y, c.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
