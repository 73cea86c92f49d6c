package envinfo

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	info := Collect("test-1a2b3c4d", 3, true)

	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS, info.Platform)
	assert.Equal(t, runtime.GOARCH, info.Architecture)
	assert.NotEmpty(t, info.Hostname)
	assert.Equal(t, 3, info.NumMessages)
	assert.Equal(t, "test-1a2b3c4d", info.SessionID)
	assert.True(t, info.PatchApplied)
}

func TestStringLayout(t *testing.T) {
	out := Info{
		GoVersion:    "go1.21.0",
		SDKVersion:   "v1.8.1",
		Platform:     "linux",
		Architecture: "amd64",
		Hostname:     "probe-host",
		InContainer:  true,
		NumMessages:  1,
		SessionID:    "test-deadbeef",
	}.String()

	assert.Contains(t, out, "ENVIRONMENT")
	assert.Contains(t, out, "amqp091-go      : v1.8.1")
	assert.Contains(t, out, "In container    : true")
	assert.Contains(t, out, "Session ID      : test-deadbeef")
	assert.Contains(t, out, "Patch applied   : false")
}

func TestInContainerMarker(t *testing.T) {
	orig := containerMarkers
	t.Cleanup(func() { containerMarkers = orig })

	dir := t.TempDir()
	marker := filepath.Join(dir, ".containerenv")

	containerMarkers = []string{marker}
	assert.False(t, inContainer())

	require.NoError(t, os.WriteFile(marker, nil, 0o644))
	assert.True(t, inContainer())
}
