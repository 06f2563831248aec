package mapping

import (
	"strconv"
	"strings"

	"github.com/mapsproj/maps/pkg/canonical"
	"github.com/mapsproj/maps/pkg/document"
)

// ExtractNodules pulls per-reader nodule annotations out of an XML
// document. Two layouts are understood:
//
//   - multi-reader: readingSession elements, each carrying a
//     servicingRadiologistID and its unblindedReadNodule children;
//   - single-read: unblindedReadNodule elements directly under the root.
//
// Region contours accept both the nested edgeMap form
// (roi/edgeMap/xCoord) and the flat form (roi/xCoord). Documents with
// neither layout return nil.
func ExtractNodules(doc *document.XMLDocument) []canonical.NoduleAnnotation {
	root := doc.RootNode()

	sessions := root.Children("readingSession")
	if len(sessions) == 0 {
		nodules := root.Children("unblindedReadNodule")
		if len(nodules) == 0 {
			return nil
		}
		return extractSession(root, "1")
	}

	var out []canonical.NoduleAnnotation
	for i, s := range sessions {
		reader := s.ChildText("servicingRadiologistID")
		if reader == "" {
			reader = strconv.Itoa(i + 1)
		}
		out = append(out, extractSession(s, reader)...)
	}
	return out
}

func extractSession(container *document.Node, reader string) []canonical.NoduleAnnotation {
	var out []canonical.NoduleAnnotation
	for i, n := range container.Children("unblindedReadNodule") {
		ann := canonical.NoduleAnnotation{
			NoduleID:  n.ChildText("noduleID"),
			ReaderID:  reader,
			FindingID: n.ChildText("findingID"),
		}
		if ann.NoduleID == "" {
			ann.NoduleID = strconv.Itoa(i + 1)
		}

		if chars := n.Child("characteristics"); chars != nil {
			ann.Characteristics = map[string]int{}
			for _, name := range canonical.CharacteristicNames {
				text := chars.ChildText(name)
				if text == "" {
					continue
				}
				v, err := strconv.Atoi(text)
				if err != nil {
					continue
				}
				ann.Characteristics[name] = v
			}
			if len(ann.Characteristics) == 0 {
				ann.Characteristics = nil
			}
		}

		for _, roi := range n.Children("roi") {
			r := canonical.ROI{SliceUID: roi.ChildText("imageSOP_UID")}
			if z := roi.ChildText("imageZposition"); z != "" {
				r.Z, _ = strconv.ParseFloat(strings.TrimSpace(z), 64)
			}
			r.Points = extractPoints(roi)
			ann.ROIs = append(ann.ROIs, r)
		}
		ann.ComputeGeometry()
		out = append(out, ann)
	}
	return out
}

// extractPoints reads contour vertices from edgeMap children, falling
// back to xCoord/yCoord pairs directly under the roi element.
func extractPoints(roi *document.Node) []canonical.Point {
	var points []canonical.Point
	for _, em := range roi.Children("edgeMap") {
		if p, ok := pointFrom(em); ok {
			points = append(points, p)
		}
	}
	if len(points) > 0 {
		return points
	}
	if p, ok := pointFrom(roi); ok {
		points = append(points, p)
	}
	return points
}

func pointFrom(n *document.Node) (canonical.Point, bool) {
	xs, ys := n.ChildText("xCoord"), n.ChildText("yCoord")
	if xs == "" || ys == "" {
		return canonical.Point{}, false
	}
	x, errX := strconv.ParseFloat(xs, 64)
	y, errY := strconv.ParseFloat(ys, 64)
	if errX != nil || errY != nil {
		return canonical.Point{}, false
	}
	return canonical.Point{X: x, Y: y}, true
}
