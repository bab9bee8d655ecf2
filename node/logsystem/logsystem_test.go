package logsystem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aitea-distribution/node/config"

	logging "github.com/ipfs/go-log/v2"
	"github.com/stretchr/testify/require"
)

func TestParseRetention(t *testing.T) {
	tests := []struct {
		in       string
		expected time.Duration
	}{
		{"10 days", 10 * 24 * time.Hour},
		{"1 day", 24 * time.Hour},
		{"2 Weeks", 14 * 24 * time.Hour},
		{"1 month", 30 * 24 * time.Hour},
		{"36h", 36 * time.Hour},
		{"12 hours", 12 * time.Hour},
		{"", 0},
	}
	for _, test := range tests {
		d, err := ParseRetention(test.in)
		require.NoError(t, err, test.in)
		require.Equal(t, test.expected, d, test.in)
	}

	for _, in := range []string{"ten days", "10 fortnights", "10", "-1 day"} {
		_, err := ParseRetention(in)
		require.Error(t, err, in)
	}
}

func TestResolve(t *testing.T) {
	s, err := Resolve(config.Logging{
		Rotation:  "100 MiB",
		Retention: "36 hours",
		MaxSize:   "1 GiB",
	}, "aitea-receiver")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(config.DefaultLogRoot, "aitea-receiver"), s.Dir)
	require.Equal(t, "aitea-receiver.log", s.FileName)
	require.Equal(t, 100, s.MaxSizeMB)
	require.Equal(t, 2, s.MaxAgeDays)
	require.Equal(t, 9, s.MaxBackups)
	require.Equal(t, uint64(1<<30), s.TotalBytes)

	s, err = Resolve(config.DefaultNode().Logging, "aitea-sender")
	require.NoError(t, err)
	require.Equal(t, "Aitea Distribution.log", s.FileName)
	require.Equal(t, 10, s.MaxAgeDays)
	require.Greater(t, s.MaxBackups, 1)

	_, err = Resolve(config.Logging{Rotation: "lots"}, "x")
	require.Error(t, err)
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	write := func(name string, size int, age time.Duration) {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, make([]byte, size), 0644))
		require.NoError(t, os.Chtimes(p, now.Add(-age), now.Add(-age)))
	}
	write("app.log", 100, 0)
	write("app-2024-01-01T00-00-00.000.log", 100, 3*time.Hour)
	write("app-2024-01-02T00-00-00.000.log", 100, 2*time.Hour)
	write("app-2024-01-03T00-00-00.000.log", 100, time.Hour)
	write("notes.txt", 1000, 5*time.Hour)

	removed, err := Prune(dir, "app.log", 250)
	require.NoError(t, err)
	require.Equal(t, 2, removed)
	require.NoFileExists(t, filepath.Join(dir, "app-2024-01-01T00-00-00.000.log"))
	require.NoFileExists(t, filepath.Join(dir, "app-2024-01-02T00-00-00.000.log"))
	require.FileExists(t, filepath.Join(dir, "app-2024-01-03T00-00-00.000.log"))
	require.FileExists(t, filepath.Join(dir, "app.log"))
	require.FileExists(t, filepath.Join(dir, "notes.txt"))

	removed, err = Prune(dir, "app.log", 0)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	closer, err := Setup(config.Logging{
		Level:     "WARNING",
		LogPath:   dir,
		LogName:   "test",
		Rotation:  "1 MB",
		Retention: "1 day",
		MaxSize:   "10 MB",
	}, "aitea-test")
	require.NoError(t, err)
	defer closer.Close()

	l := logging.Logger("logsystem-test")
	require.NoError(t, SetLevel("warning"))
	l.Info("hidden line")
	l.Warn("visible line")
	_ = l.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "visible line"))
	require.False(t, strings.Contains(string(data), "hidden line"))

	require.Error(t, SetLevel("loud"))
	require.NoError(t, SetLevel("INFO"))
}

func TestSetupInvalidLevel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	closer, err := Setup(config.Logging{
		Level:   "loud",
		LogPath: dir,
		LogName: "test",
	}, "aitea-test")
	require.Error(t, err)
	require.Nil(t, closer)
	require.NoDirExists(t, dir)
}
