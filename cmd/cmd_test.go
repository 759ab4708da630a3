package cmd

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbePortSkipsBusyPort(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	got, err := probePort(port, 10)
	require.NoError(t, err)
	assert.Greater(t, got, port)

	_, err = probePort(port, 1)
	assert.ErrorIs(t, err, errNoFreePort)
}

func TestAwaitListener(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()

	require.NoError(t, awaitListener(context.Background(), addr, time.Second))

	require.NoError(t, l.Close())
	err = awaitListener(context.Background(), addr, 250*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, Execute("1.2.3"))
	assert.Equal(t, "AirScope v1.2.3\n", out.String())
	assert.Equal(t, "1.2.3", cfg.Version)
}

func TestIngestCommand(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "points.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"data_type,so2_value,latitude,longitude,timestamp\n"+
			"ground,8.5,28.61,77.21,2024-10-01T06:00:00Z\n"), 0644))
	dbPath := filepath.Join(dir, "nested", "airscope.db")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"ingest", "--db", dbPath, csvPath})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, Execute(""))
	assert.Contains(t, out.String(), "Ingested 1 data points")
	assert.FileExists(t, dbPath)
}
