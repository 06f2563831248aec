package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapsproj/maps/pkg/document"
)

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    document.Format
		wantErr bool
	}{
		{"scan.xml", document.FormatXML, false},
		{"export.JSON", document.FormatJSON, false},
		{"rows.csv", document.FormatCSV, false},
		{"notes.txt", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		got, err := formatFromPath(tt.path)
		if tt.wantErr {
			assert.Error(t, err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestDetectCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<LidcReadMessage>
  <ResponseHeader>
    <StudyInstanceUID>1.3.6.1</StudyInstanceUID>
    <SeriesInstanceUID>1.3.6.2</SeriesInstanceUID>
    <DateService>2003-11-12</DateService>
    <TimeService>10:00:00</TimeService>
  </ResponseHeader>
  <readingSession>
    <servicingRadiologistID>R-001</servicingRadiologistID>
    <unblindedReadNodule>
      <noduleID>N1</noduleID>
      <characteristics><subtlety>3</subtlety></characteristics>
      <roi><imageSOP_UID>1.9.1</imageSOP_UID></roi>
    </unblindedReadNodule>
  </readingSession>
</LidcReadMessage>`), 0o600))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"detect", path})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, buf.String(), "lidc_single_session")
}

func TestDetectCommandVerbose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<LidcReadMessage>
  <ResponseHeader>
    <StudyInstanceUID>1.3.6.1</StudyInstanceUID>
    <SeriesInstanceUID>1.3.6.2</SeriesInstanceUID>
    <DateService>2003-11-12</DateService>
    <TimeService>10:00:00</TimeService>
  </ResponseHeader>
  <readingSession>
    <servicingRadiologistID>R-001</servicingRadiologistID>
    <unblindedReadNodule>
      <noduleID>N1</noduleID>
      <characteristics><subtlety>3</subtlety></characteristics>
      <roi><imageSOP_UID>1.9.1</imageSOP_UID></roi>
    </unblindedReadNodule>
  </readingSession>
</LidcReadMessage>`), 0o600))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"detect", "--verbose", path})
	require.NoError(t, rootCmd.Execute())
	verbose = false

	out := buf.String()
	assert.Contains(t, out, "root=LidcReadMessage")
	assert.Contains(t, out, "sessions=1")
	assert.Contains(t, out, "noduleID=1")
}
