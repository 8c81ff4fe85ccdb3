package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(
		filepath.Join(root, "input"),
		filepath.Join(root, "output"),
		filepath.Join(root, "input_archive"),
		filepath.Join(root, "output_archive"),
	)
	require.NoError(t, fm.EnsureDirectories())
	return fm
}

func TestDiscoverInputFiles(t *testing.T) {
	fm := newTestManager(t)
	for _, name := range []string{"b.txt", "a.txt", "notes.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(fm.InputDir, name), []byte("MANIFESTO|1|"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(fm.InputDir, "dir.txt"), 0o755))

	files, err := fm.DiscoverInputFiles("")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(fm.InputDir, "a.txt"),
		filepath.Join(fm.InputDir, "b.txt"),
	}, files)

	_, err = fm.DiscoverInputFiles("[")
	require.Error(t, err)
}

func TestArchive(t *testing.T) {
	fm := newTestManager(t)
	fm.UseTimestampSubdirs = true
	fm.Now = func() time.Time { return time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC) }

	in := filepath.Join(fm.InputDir, "lote.txt")
	require.NoError(t, os.WriteFile(in, []byte("MANIFESTO|1|"), 0o644))

	archived, err := fm.ArchiveInputFile(in)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(fm.InputArchiveDir, "2024", "05", "15", "lote.txt"), archived)
	require.NoFileExists(t, in)
	require.FileExists(t, archived)

	out, err := fm.WriteOutput("x-mdfe.xml", []byte("<MDFe/>"))
	require.NoError(t, err)
	copied, err := fm.ArchiveOutputFile(out)
	require.NoError(t, err)
	require.FileExists(t, out)
	data, err := os.ReadFile(copied)
	require.NoError(t, err)
	require.Equal(t, "<MDFe/>", string(data))
}

func TestArchiveDisabled(t *testing.T) {
	fm := newTestManager(t)
	fm.ArchiveOnSuccess = false

	in := filepath.Join(fm.InputDir, "lote.txt")
	require.NoError(t, os.WriteFile(in, nil, 0o644))
	got, err := fm.ArchiveInputFile(in)
	require.NoError(t, err)
	require.Equal(t, in, got)
	require.True(t, FileExists(in))
}

func TestGenerateOutputFileName(t *testing.T) {
	key := "31240511222333000181580010000001231123456787"

	require.Equal(t, key+"-mdfe.xml",
		GenerateOutputFileName("{key}-mdfe.xml", map[string]string{"key": key}))
	require.Equal(t, "lote-2.xml",
		GenerateOutputFileName("{source}-{index}", map[string]string{"source": "lote", "index": "2"}))
	require.Equal(t, "A.XML", GenerateOutputFileName("A.XML", nil))

	name := GenerateOutputFileName("{uuid}.xml", nil)
	require.Len(t, strings.TrimSuffix(name, ".xml"), 36)
	require.NotContains(t, name, "{")
}

func TestWriteErrorLog(t *testing.T) {
	fm := newTestManager(t)

	path, err := WriteErrorLog(nil, fm.OutputDir)
	require.NoError(t, err)
	require.Empty(t, path)

	at := time.Date(2024, 5, 15, 10, 30, 0, 0, time.UTC)
	path, err = WriteErrorLog([]ErrorLogEntry{
		{Timestamp: at, FileName: "lote.txt", ErrorType: "MalformedLine", ErrorMessage: "line 24: bad", Document: 2, LineNumber: 24},
		{Timestamp: at, FileName: "other.txt", ErrorType: "DocumentCountMismatch", ErrorMessage: "header says 3, found 2"},
	}, fm.OutputDir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	log := string(data)
	require.Contains(t, log, "Total Errors: 2")
	require.Contains(t, log, "  Document:         2\n")
	require.Contains(t, log, "  Line Number:      24\n")
	require.Contains(t, log, "  Timestamp:        2024-05-15 10:30:00\n")
	require.Equal(t, 1, strings.Count(log, "Line Number:"))
	require.True(t, strings.HasSuffix(log, "End of Error Log\n"))

	_, err = WriteErrorLog([]ErrorLogEntry{{}}, filepath.Join(fm.OutputDir, "missing"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteSummaryLog(t *testing.T) {
	fm := newTestManager(t)
	start := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	path, err := WriteSummaryLog(ProcessingSummary{
		StartTime:       start,
		EndTime:         start.Add(2 * time.Second),
		TotalFiles:      2,
		SuccessfulFiles: 1,
		FailedFiles:     1,
		TotalDocuments:  3,
		FailedDocuments: 1,
		ProcessedFiles: []ProcessedFileInfo{{
			InputFile:   "input/a.txt",
			OutputFiles: []string{"output/1-mdfe.xml", "output/2-mdfe.xml"},
			Documents:   2,
		}},
		FailedFilesList: []FailedFileInfo{{InputFile: "input/b.txt", ErrorType: "KeyMismatch", ErrorMessage: "key differs"}},
	}, fm.OutputDir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	summary := string(data)
	require.Contains(t, summary, "  Duration:         2s\n")
	require.Contains(t, summary, "  Failed Documents: 1\n")
	require.Equal(t, 2, strings.Count(summary, "  Output:"))
	require.Contains(t, summary, "  Type:             KeyMismatch\n")
}
