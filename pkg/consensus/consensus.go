// Package consensus clusters per-reader nodule annotations that refer to
// the same physical finding and computes consensus statistics and
// inter-reader agreement.
//
// Clustering links annotations from different readers when the source
// data carries an explicit same-finding ID, or when their spatial
// centroids fall within a distance threshold and their slice ranges
// overlap. Connected components (union-find) become clusters; annotations
// with no qualifying partner form singleton clusters.
//
// Results are deterministic: neither reader order nor annotation order
// within a reader changes the output.
package consensus

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapsproj/maps/pkg/canonical"
)

// DefaultDistanceThreshold is the centroid distance (image units) under
// which two cross-reader annotations are considered the same finding.
const DefaultDistanceThreshold = 5.0

// Options tunes the clustering rule.
type Options struct {
	// DistanceThreshold for spatial linkage; <= 0 uses the default.
	DistanceThreshold float64
	// IgnoreExplicitLinks disables FindingID linkage, forcing purely
	// spatial clustering.
	IgnoreExplicitLinks bool
}

func (o Options) threshold() float64 {
	if o.DistanceThreshold > 0 {
		return o.DistanceThreshold
	}
	return DefaultDistanceThreshold
}

// Stat holds the consensus statistics of one ordinal characteristic
// across a cluster's members.
type Stat struct {
	// Median uses the lower of the two middle values on an even split.
	Median int `json:"median"`
	// IQR is the interquartile range, the dispersion signal. Quartiles
	// follow the same lower-median policy, so for samples of two or
	// three members the IQR equals max minus min rather than the
	// narrower value an exclusive-quartile convention would give.
	IQR float64 `json:"iqr"`
	// Mean is reported for reference alongside the primary median.
	Mean float64 `json:"mean"`
	// Count is how many members rated the characteristic.
	Count int `json:"count"`
}

// Cluster is a group of cross-reader annotations judged to be the same
// physical finding, plus derived consensus values. Not mutated after
// Consolidate returns.
type Cluster struct {
	ID              string                       `json:"id"`
	Members         []canonical.NoduleAnnotation `json:"members"`
	Characteristics map[string]Stat              `json:"characteristics,omitempty"`
	// Agreement is 1 minus normalized dispersion, averaged across
	// characteristics, in [0,1].
	Agreement float64 `json:"agreement"`
	// Readers is the number of distinct contributing readers.
	Readers int `json:"readers"`
}

// clusterNamespace makes cluster IDs deterministic functions of their
// smallest member key.
var clusterNamespace = uuid.MustParse("8f3c9dd4-5a26-4b6d-9f84-2f6f9a1d7c31")

// Consolidate clusters one case's per-reader annotation sets. Readers
// contributing zero annotations contribute nothing; a case with no
// annotations at all returns an empty list.
func Consolidate(perReader [][]canonical.NoduleAnnotation, opts Options, logger *zap.Logger) []Cluster {
	if logger == nil {
		logger = zap.NewNop()
	}

	var all []canonical.NoduleAnnotation
	for _, anns := range perReader {
		all = append(all, anns...)
	}
	if len(all) == 0 {
		return []Cluster{}
	}
	// Canonical processing order, independent of input ordering.
	sort.Slice(all, func(i, j int) bool { return memberKey(all[i]) < memberKey(all[j]) })

	uf := newUnionFind(all)
	for _, e := range qualifyingEdges(all, opts) {
		uf.union(e.i, e.j)
	}

	groups := map[int][]int{}
	for i := range all {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	clusters := make([]Cluster, 0, len(groups))
	for _, members := range groups {
		anns := make([]canonical.NoduleAnnotation, 0, len(members))
		for _, idx := range members {
			anns = append(anns, all[idx])
		}
		clusters = append(clusters, buildCluster(anns))
	}
	sort.Slice(clusters, func(i, j int) bool {
		return memberKey(clusters[i].Members[0]) < memberKey(clusters[j].Members[0])
	})

	logger.Debug("annotations consolidated",
		zap.Int("annotations", len(all)),
		zap.Int("clusters", len(clusters)))
	return clusters
}

// edge is one qualifying cross-reader pair.
type edge struct {
	i, j int
	dist float64
}

// qualifyingEdges enumerates linked pairs in a deterministic order:
// explicit links first, then spatial links by increasing distance. Order
// matters because union is skipped when it would put two annotations
// from one reader into the same cluster.
func qualifyingEdges(all []canonical.NoduleAnnotation, opts Options) []edge {
	var explicit, spatial []edge
	threshold := opts.threshold()
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if a.ReaderID == b.ReaderID {
				continue
			}
			if !opts.IgnoreExplicitLinks && a.FindingID != "" && a.FindingID == b.FindingID {
				explicit = append(explicit, edge{i: i, j: j})
				continue
			}
			d := a.Centroid.Distance(b.Centroid)
			if d <= threshold && a.Slices.Overlaps(b.Slices) {
				spatial = append(spatial, edge{i: i, j: j, dist: d})
			}
		}
	}
	sort.Slice(spatial, func(x, y int) bool {
		if spatial[x].dist != spatial[y].dist {
			return spatial[x].dist < spatial[y].dist
		}
		if spatial[x].i != spatial[y].i {
			return spatial[x].i < spatial[y].i
		}
		return spatial[x].j < spatial[y].j
	})
	return append(explicit, spatial...)
}

func buildCluster(members []canonical.NoduleAnnotation) Cluster {
	sort.Slice(members, func(i, j int) bool { return memberKey(members[i]) < memberKey(members[j]) })

	readers := map[string]bool{}
	for _, m := range members {
		readers[m.ReaderID] = true
	}

	stats := map[string]Stat{}
	var agreementSum float64
	var agreementN int
	for _, name := range canonical.CharacteristicNames {
		var values []int
		for _, m := range members {
			if v, ok := m.Characteristics[name]; ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		st := computeStat(values)
		stats[name] = st

		a := 1 - st.IQR/canonical.CharacteristicRange(name)
		if a < 0 {
			a = 0
		}
		if a > 1 {
			a = 1
		}
		agreementSum += a
		agreementN++
	}
	if len(stats) == 0 {
		stats = nil
	}

	// A cluster with no rated characteristics has nothing to disagree
	// about.
	agreement := 1.0
	if agreementN > 0 {
		agreement = agreementSum / float64(agreementN)
	}

	key := memberKey(members[0])
	return Cluster{
		ID:              uuid.NewSHA1(clusterNamespace, []byte(key)).String(),
		Members:         members,
		Characteristics: stats,
		Agreement:       agreement,
		Readers:         len(readers),
	}
}

// computeStat derives median, IQR, and mean for an ordinal sample. The
// median of an even-sized split sample is the lower middle value, a
// fixed policy applied to the quartiles as well.
func computeStat(values []int) Stat {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	sum := 0
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)

	st := Stat{
		Median: lowerMedian(sorted),
		Mean:   float64(sum) / float64(n),
		Count:  n,
	}
	if n > 1 {
		lower := sorted[:n/2]
		upper := sorted[(n+1)/2:]
		st.IQR = float64(lowerMedian(upper) - lowerMedian(lower))
	}
	return st
}

// lowerMedian returns the median of a sorted sample, choosing the lower
// of the two middle values when the size is even.
func lowerMedian(sorted []int) int {
	return sorted[(len(sorted)-1)/2]
}

func memberKey(a canonical.NoduleAnnotation) string {
	return fmt.Sprintf("%s\x00%s", a.ReaderID, a.NoduleID)
}
