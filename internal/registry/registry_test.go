package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const key = "31190312345678000190580010000000011000000017"

func TestRecordReportsRepeatedKey(t *testing.T) {
	require := require.New(t)

	s, err := Open(filepath.Join(t.TempDir(), "db", "keys.db"))
	require.NoError(err)
	defer s.Close()

	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	_, seen, err := s.Record(key, "lote1.txt")
	require.NoError(err)
	require.False(seen)

	prev, seen, err := s.Record(key, "lote2.txt")
	require.NoError(err)
	require.True(seen)
	require.Equal("lote1.txt", prev.Source)
	require.True(at.Equal(prev.RecordedAt))

	n, err := s.Count()
	require.NoError(err)
	require.Equal(1, n)
}

func TestLookupSurvivesReopen(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "keys.db")

	s, err := Open(path)
	require.NoError(err)
	_, _, err = s.Record(key, "lote.txt")
	require.NoError(err)
	require.NoError(s.Close())

	s, err = Open(path)
	require.NoError(err)
	defer s.Close()

	e, ok, err := s.Lookup(key)
	require.NoError(err)
	require.True(ok)
	require.Equal(key, e.Key)

	_, ok, err = s.Lookup("0")
	require.NoError(err)
	require.False(ok)
}
