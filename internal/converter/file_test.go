package converter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/mdfe-converter/internal/config"
	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
	"github.com/ginjaninja78/mdfe-converter/internal/registry"
	"github.com/ginjaninja78/mdfe-converter/pkg/utils"
)

type fixture struct {
	cfg   *config.MainConfig
	files *utils.FileManager
	conv  *Converter
}

func newFixture(t *testing.T, continueOnError bool) fixture {
	t.Helper()
	root := t.TempDir()
	cfg := &config.MainConfig{
		InputDir:         filepath.Join(root, "input"),
		OutputDir:        filepath.Join(root, "output"),
		InputArchiveDir:  filepath.Join(root, "input_archive"),
		OutputArchiveDir: filepath.Join(root, "output_archive"),
		Encoding:         "UTF-8",
		UUIDFormat:       "{key}-mdfe.xml",
		ContinueOnError:  continueOnError,
	}
	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	require.NoError(t, files.EnsureDirectories())

	conv, err := New(Options{})
	require.NoError(t, err)
	return fixture{cfg: cfg, files: files, conv: conv}
}

func (f fixture) input(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(f.cfg.InputDir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestFileProcessorConvertsAndArchives(t *testing.T) {
	f := newFixture(t, false)
	path := f.input(t, "lote.txt", batchOf(first(), second()))

	keys, err := registry.Open(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	defer keys.Close()

	result := NewFileProcessor(f.cfg, f.conv, f.files, keys).Run(path)
	require.NoError(t, result.Error)
	require.True(t, result.Success)
	require.Equal(t, 2, result.Stats.DocumentsConverted)
	require.Zero(t, result.Stats.DuplicateKeys)
	require.Greater(t, result.Stats.ProcessingTime, time.Duration(0))

	require.Equal(t, []string{
		filepath.Join(f.cfg.OutputDir, key1+"-mdfe.xml"),
		filepath.Join(f.cfg.OutputDir, key2+"-mdfe.xml"),
	}, result.OutputFiles)
	for _, out := range result.OutputFiles {
		require.True(t, utils.FileExists(out))
		require.True(t, utils.FileExists(filepath.Join(f.cfg.OutputArchiveDir, filepath.Base(out))))
	}
	for _, d := range result.Documents {
		require.Empty(t, d.XML)
	}

	require.Equal(t, filepath.Join(f.cfg.InputArchiveDir, "lote.txt"), result.ArchivePath)
	require.False(t, utils.FileExists(path))

	n, err := keys.Count()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	again := f.input(t, "lote2.txt", batchOf(first()))
	result = NewFileProcessor(f.cfg, f.conv, f.files, keys).Run(again)
	require.True(t, result.Success)
	require.Equal(t, 1, result.Stats.DuplicateKeys)
}

func TestFileProcessorStopsOnFailedDocument(t *testing.T) {
	f := newFixture(t, false)
	bad := manifest(key2, "999", "87654321", "Chave Errada")
	path := f.input(t, "lote.txt", batchOf(first(), bad))

	result := NewFileProcessor(f.cfg, f.conv, f.files, nil).Run(path)
	require.False(t, result.Success)
	require.ErrorIs(t, result.Error, mdfe.ErrKeyMismatch)
	require.Empty(t, result.OutputFiles)
	require.Equal(t, 1, result.Stats.DocumentsFailed)
	require.True(t, utils.FileExists(path), "input stays for correction")

	entries := result.ErrorLogEntries(time.Now())
	require.Len(t, entries, 1)
	require.Equal(t, "lote.txt", entries[0].FileName)
	require.Equal(t, 2, entries[0].Document)
	require.Equal(t, "KeyMismatch", entries[0].ErrorType)
}

func TestFileProcessorContinueOnError(t *testing.T) {
	f := newFixture(t, true)
	bad := manifest(key2, "999", "87654321", "Chave Errada")
	path := f.input(t, "lote.txt", batchOf(first(), bad))

	result := NewFileProcessor(f.cfg, f.conv, f.files, nil).Run(path)
	require.False(t, result.Success)
	require.Len(t, result.OutputFiles, 1)
	require.Equal(t, 1, result.Stats.DocumentsConverted)
	require.Equal(t, 1, result.Stats.DocumentsFailed)
	require.True(t, utils.FileExists(path))
}

func TestFileProcessorBatchError(t *testing.T) {
	f := newFixture(t, false)
	path := f.input(t, "lote.txt", "MANIFESTO|2|\n"+first())

	result := NewFileProcessor(f.cfg, f.conv, f.files, nil).Run(path)
	require.False(t, result.Success)
	require.ErrorIs(t, result.Error, mdfe.ErrDocumentCountMismatch)
	require.Empty(t, result.Documents)

	entries := result.ErrorLogEntries(time.Now())
	require.Len(t, entries, 1)
	require.Equal(t, 0, entries[0].Document)
	require.Equal(t, "DocumentCountMismatch", entries[0].ErrorType)
}

func TestErrorLogEntriesCarryLineNumber(t *testing.T) {
	result := Result{
		FilePath: "/in/lote.txt",
		Documents: []DocumentResult{
			{Index: 1},
			{Index: 2, Err: &mdfe.DocumentError{Index: 2, Err: &mdfe.MalformedLineError{Line: 17, Content: "Q|", Reason: "unknown"}}},
		},
	}
	entries := result.ErrorLogEntries(time.Now())
	require.Len(t, entries, 1)
	require.Equal(t, 17, entries[0].LineNumber)
	require.Equal(t, "MalformedLine", entries[0].ErrorType)
}

func TestErrorLogEntriesCarryViolationLine(t *testing.T) {
	result := Result{
		FilePath: "/in/lote.txt",
		Documents: []DocumentResult{
			{Index: 1, Err: &mdfe.DocumentError{Index: 1, Err: &mdfe.SchemaViolationError{Label: "B", Reason: "ide already given", Line: 9, Content: "B|31|"}}},
		},
	}
	entries := result.ErrorLogEntries(time.Now())
	require.Len(t, entries, 1)
	require.Equal(t, 9, entries[0].LineNumber)
	require.Equal(t, "SchemaViolation", entries[0].ErrorType)
}
