package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mapsproj/maps/internal/metrics"
	"github.com/mapsproj/maps/pkg/canonical"
	"github.com/mapsproj/maps/pkg/detector"
	"github.com/mapsproj/maps/pkg/document"
	"github.com/mapsproj/maps/pkg/mapping"
	"github.com/mapsproj/maps/pkg/profile"
	"github.com/mapsproj/maps/pkg/review"
)

const twoReaderProfile = `
name: lidc_two_reader
file_type: xml
case: lidc_multi_session_2
mappings:
  - source: ResponseHeader/StudyInstanceUID
    target: document_metadata.study_instance_uid
    required: true
    weight: 2
  - source: ResponseHeader/SeriesInstanceUID
    target: document_metadata.series_instance_uid
    required: true
    weight: 2
  - source: ResponseHeader/DateService
    target: document_metadata.date_service
  - source: ResponseHeader/TimeService
    target: document_metadata.time_service
validation:
  allow_extra_fields: true
`

func session(reader string, subtlety int, x, y int) string {
	return fmt.Sprintf(`
  <readingSession>
    <servicingRadiologistID>%s</servicingRadiologistID>
    <unblindedReadNodule>
      <noduleID>N1</noduleID>
      <characteristics><subtlety>%d</subtlety></characteristics>
      <roi>
        <imageZposition>-120.0</imageZposition>
        <imageSOP_UID>1.9.1</imageSOP_UID>
        <edgeMap><xCoord>%d</xCoord><yCoord>%d</yCoord></edgeMap>
        <edgeMap><xCoord>%d</xCoord><yCoord>%d</yCoord></edgeMap>
      </roi>
    </unblindedReadNodule>
  </readingSession>`, reader, subtlety, x, y, x+2, y+2)
}

func twoReaderXML() []byte {
	return []byte(`<LidcReadMessage>
  <ResponseHeader>
    <StudyInstanceUID>1.3.6.1</StudyInstanceUID>
    <SeriesInstanceUID>1.3.6.2</SeriesInstanceUID>
    <DateService>2003-11-12</DateService>
    <TimeService>10:00:00</TimeService>
  </ResponseHeader>` +
		session("R-001", 3, 100, 200) +
		session("R-002", 4, 101, 201) +
		"\n</LidcReadMessage>")
}

func newTestPipeline(t *testing.T, m *metrics.Metrics) *Pipeline {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lidc_two_reader.yaml"), []byte(twoReaderProfile), 0o600))

	engine := mapping.NewEngine(mapping.NewRegistry(), zap.NewNop())
	store, err := profile.NewStore(dir, engine.Transforms(), zap.NewNop())
	require.NoError(t, err)

	cache, err := detector.NewCache(64)
	require.NoError(t, err)

	p, err := New(Options{
		Detector: detector.New(detector.DefaultRegistry(), cache, zap.NewNop()),
		Store:    store,
		Engine:   engine,
		Metrics:  m,
	})
	require.NoError(t, err)
	return p
}

func TestProcessEndToEnd(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := newTestPipeline(t, m)

	res, err := p.Process(context.Background(), twoReaderXML(), document.FormatXML)
	require.NoError(t, err)

	assert.Equal(t, "lidc_multi_session_2", res.Detection.Case)
	assert.Equal(t, 1.0, res.Detection.Confidence)

	require.NotNil(t, res.Record)
	assert.Equal(t, "lidc_two_reader", res.Record.Profile)
	assert.Equal(t, "lidc_multi_session_2", res.Record.Case)
	assert.Equal(t, 1.0, res.Record.Confidence)

	uid, ok := res.Record.Fields.Get("document_metadata.study_instance_uid")
	require.True(t, ok)
	assert.Equal(t, "1.3.6.1", uid)

	// Two readers, near-coincident centroids: one cluster of two.
	require.Len(t, res.Clusters, 1)
	assert.Len(t, res.Clusters[0].Members, 2)
	assert.Equal(t, 2, res.Clusters[0].Readers)
	assert.Equal(t, 3, res.Clusters[0].Characteristics["subtlety"].Median)

	assert.Equal(t, review.StatusAccepted, res.Decision.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetectionsTotal.WithLabelValues("lidc_multi_session_2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClustersTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestProcessMalformedDocument(t *testing.T) {
	p := newTestPipeline(t, nil)

	_, err := p.Process(context.Background(), []byte("<unclosed"), document.FormatXML)
	require.Error(t, err)
	var derr *detector.DetectionError
	assert.ErrorAs(t, err, &derr)
}

func TestProcessUnknownStructureNeedsReview(t *testing.T) {
	p := newTestPipeline(t, nil)

	res, err := p.Process(context.Background(), []byte(`<catalog><book><title>x</title></book></catalog>`), document.FormatXML)
	require.NoError(t, err)

	assert.Empty(t, res.Detection.Case)
	assert.Equal(t, review.StatusNeedsReview, res.Decision.Status)
	assert.Contains(t, res.Decision.Reason, "no mapping profile")
}

func TestProcessCancelledContext(t *testing.T) {
	p := newTestPipeline(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, twoReaderXML(), document.FormatXML)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunBatch(t *testing.T) {
	p := newTestPipeline(t, nil)

	inputs := []Input{
		{Name: "good-1.xml", Raw: twoReaderXML(), Format: document.FormatXML},
		{Name: "broken.xml", Raw: []byte("<nope"), Format: document.FormatXML},
		{Name: "good-2.xml", Raw: twoReaderXML(), Format: document.FormatXML},
	}

	results := p.RunBatch(context.Background(), inputs, 2)
	require.Len(t, results, 3)

	assert.Equal(t, "good-1.xml", results[0].Input)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, review.StatusAccepted, results[0].Decision.Status)

	assert.Equal(t, "broken.xml", results[1].Input)
	assert.Error(t, results[1].Err)

	assert.NoError(t, results[2].Err)

	stats := Summarize(results)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Accepted)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 0, stats.NeedsReview)
	assert.Equal(t, 2, stats.Clusters)
	assert.Equal(t, 2, stats.PerCase["lidc_multi_session_2"])
	assert.InDelta(t, 1.0, stats.AvgConfidence, 1e-9)
}

func TestRunBatchCancelled(t *testing.T) {
	p := newTestPipeline(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := p.RunBatch(ctx, []Input{
		{Name: "a.xml", Raw: twoReaderXML(), Format: document.FormatXML},
		{Name: "b.xml", Raw: twoReaderXML(), Format: document.FormatXML},
	}, 1)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestSummarizeEmptyAndReview(t *testing.T) {
	results := []Result{
		{
			Detection: detector.Result{Case: "core_attributes_only"},
			Record:    &canonical.Record{Fields: canonical.FieldTree{}, Confidence: 0.6},
			Decision:  review.Decision{Status: review.StatusNeedsReview},
		},
	}
	stats := Summarize(results)
	assert.Equal(t, 1, stats.NeedsReview)
	assert.Equal(t, 1, stats.Empty)
	assert.InDelta(t, 0.6, stats.AvgConfidence, 1e-9)
}
