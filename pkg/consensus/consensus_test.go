package consensus

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mapsproj/maps/pkg/canonical"
)

func ann(reader, nodule, finding string, x, y, z float64, chars map[string]int) canonical.NoduleAnnotation {
	return canonical.NoduleAnnotation{
		NoduleID:        nodule,
		ReaderID:        reader,
		FindingID:       finding,
		Characteristics: chars,
		Centroid:        canonical.Centroid3{X: x, Y: y, Z: z},
		Slices:          canonical.SliceRange{Min: z - 1, Max: z + 1},
	}
}

func TestConsolidateSpatialFourReaders(t *testing.T) {
	perReader := [][]canonical.NoduleAnnotation{
		{ann("1", "N1", "", 120, 130, -120, map[string]int{canonical.CharSubtlety: 3})},
		{ann("2", "N1", "", 121, 130, -120, map[string]int{canonical.CharSubtlety: 4})},
		{ann("3", "N1", "", 120, 131, -121, map[string]int{canonical.CharSubtlety: 3})},
		{ann("4", "N1", "", 122, 129, -120, map[string]int{canonical.CharSubtlety: 4})},
	}

	clusters := Consolidate(perReader, Options{}, zap.NewNop())
	require.Len(t, clusters, 1)

	c := clusters[0]
	assert.Len(t, c.Members, 4)
	assert.Equal(t, 4, c.Readers)

	st, ok := c.Characteristics[canonical.CharSubtlety]
	require.True(t, ok)
	assert.Equal(t, 3, st.Median, "even split takes the lower middle value")
	assert.InDelta(t, 1.0, st.IQR, 1e-9)
	assert.InDelta(t, 3.5, st.Mean, 1e-9)
	assert.Equal(t, 4, st.Count)

	// 1 - IQR/range = 1 - 1/4
	assert.InDelta(t, 0.75, c.Agreement, 1e-9)
	assert.Greater(t, c.Agreement, 0.7)
}

func TestConsolidateNearbyCentroidsMerge(t *testing.T) {
	perReader := [][]canonical.NoduleAnnotation{
		{ann("1", "A", "", 120, 130, 0, nil)},
		{ann("2", "B", "", 122, 131, 0, nil)},
	}

	clusters := Consolidate(perReader, Options{DistanceThreshold: 5}, zap.NewNop())
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Members, 2)
	assert.Equal(t, 2, clusters[0].Readers)
	assert.InDelta(t, 1.0, clusters[0].Agreement, 1e-9)
}

func TestConsolidateDistantCentroidsStaySeparate(t *testing.T) {
	perReader := [][]canonical.NoduleAnnotation{
		{ann("1", "A", "", 120, 130, 0, nil)},
		{ann("2", "B", "", 200, 131, 0, nil)},
	}

	clusters := Consolidate(perReader, Options{}, zap.NewNop())
	require.Len(t, clusters, 2)
	for _, c := range clusters {
		assert.Len(t, c.Members, 1)
		assert.Equal(t, 1, c.Readers)
		assert.InDelta(t, 1.0, c.Agreement, 1e-9)
	}
}

func TestConsolidateExplicitLinkBeatsDistance(t *testing.T) {
	// Far apart spatially but carrying the same finding ID.
	perReader := [][]canonical.NoduleAnnotation{
		{ann("1", "A", "F-7", 0, 0, 0, nil)},
		{ann("2", "B", "F-7", 500, 500, 50, nil)},
	}

	clusters := Consolidate(perReader, Options{}, zap.NewNop())
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Members, 2)

	clusters = Consolidate(perReader, Options{IgnoreExplicitLinks: true}, zap.NewNop())
	assert.Len(t, clusters, 2)
}

func TestConsolidateNonOverlappingSlicesStaySeparate(t *testing.T) {
	a := ann("1", "A", "", 100, 100, 0, nil)
	b := ann("2", "B", "", 101, 100, 0, nil)
	b.Slices = canonical.SliceRange{Min: 10, Max: 12}

	clusters := Consolidate([][]canonical.NoduleAnnotation{{a}, {b}}, Options{}, zap.NewNop())
	assert.Len(t, clusters, 2)
}

func TestConsolidateSameReaderNeverClustered(t *testing.T) {
	// One reader marks two coincident nodules. They must remain
	// distinct clusters even though a second reader links to both.
	perReader := [][]canonical.NoduleAnnotation{
		{
			ann("1", "A1", "", 100, 100, 0, nil),
			ann("1", "A2", "", 100, 100, 0, nil),
		},
		{ann("2", "B", "", 101, 100, 0, nil)},
	}

	clusters := Consolidate(perReader, Options{}, zap.NewNop())
	require.Len(t, clusters, 2)
	for _, c := range clusters {
		seen := map[string]bool{}
		for _, m := range c.Members {
			assert.False(t, seen[m.ReaderID], "reader %s appears twice in one cluster", m.ReaderID)
			seen[m.ReaderID] = true
		}
	}
}

func TestConsolidatePermutationInvariant(t *testing.T) {
	base := [][]canonical.NoduleAnnotation{
		{
			ann("1", "N1", "", 120, 130, -120, map[string]int{canonical.CharMalignancy: 5, canonical.CharCalcification: 6}),
			ann("1", "N2", "", 300, 40, 10, map[string]int{canonical.CharMalignancy: 1}),
		},
		{ann("2", "N1", "", 121, 131, -120, map[string]int{canonical.CharMalignancy: 4, canonical.CharCalcification: 6})},
		{ann("3", "N9", "", 119, 130, -121, map[string]int{canonical.CharMalignancy: 5})},
	}

	want := Consolidate(base, Options{}, zap.NewNop())

	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 20; trial++ {
		shuffled := make([][]canonical.NoduleAnnotation, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		for i := range shuffled {
			anns := append([]canonical.NoduleAnnotation(nil), shuffled[i]...)
			rng.Shuffle(len(anns), func(x, y int) { anns[x], anns[y] = anns[y], anns[x] })
			shuffled[i] = anns
		}

		got := Consolidate(shuffled, Options{}, zap.NewNop())
		require.Equal(t, want, got, "trial %d", trial)
	}
}

func TestConsolidateEmptyInput(t *testing.T) {
	assert.Empty(t, Consolidate(nil, Options{}, nil))
	assert.Empty(t, Consolidate([][]canonical.NoduleAnnotation{{}, {}}, Options{}, nil))
}

func TestConsolidateClusterIDsStable(t *testing.T) {
	perReader := [][]canonical.NoduleAnnotation{
		{ann("1", "A", "", 0, 0, 0, nil)},
		{ann("2", "B", "", 1, 0, 0, nil)},
	}
	first := Consolidate(perReader, Options{}, zap.NewNop())
	second := Consolidate(perReader, Options{}, zap.NewNop())
	require.Len(t, first, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.NotEmpty(t, first[0].ID)
}

func TestComputeStat(t *testing.T) {
	tests := []struct {
		name       string
		values     []int
		median     int
		iqr        float64
		mean       float64
	}{
		{"single", []int{4}, 4, 0, 4},
		{"pair", []int{2, 5}, 2, 3, 3.5},
		{"odd", []int{1, 3, 5}, 3, 4, 3},
		{"even tie", []int{3, 3, 4, 4}, 3, 1, 3.5},
		{"unanimous", []int{5, 5, 5, 5}, 5, 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := computeStat(tt.values)
			assert.Equal(t, tt.median, st.Median)
			assert.InDelta(t, tt.iqr, st.IQR, 1e-9)
			assert.InDelta(t, tt.mean, st.Mean, 1e-9)
			assert.Equal(t, len(tt.values), st.Count)
		})
	}
}

func TestAgreementUsesPerCharacteristicRange(t *testing.T) {
	// Calcification is a 6-point scale (range 5); the same IQR costs
	// less agreement there than on a 5-point scale.
	perReader := [][]canonical.NoduleAnnotation{
		{ann("1", "A", "", 0, 0, 0, map[string]int{canonical.CharCalcification: 3})},
		{ann("2", "B", "", 1, 0, 0, map[string]int{canonical.CharCalcification: 4})},
	}
	clusters := Consolidate(perReader, Options{}, zap.NewNop())
	require.Len(t, clusters, 1)
	assert.InDelta(t, 1-1.0/5.0, clusters[0].Agreement, 1e-9)
}
