package macho

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appsworld/tbd-macho/types"
)

func TestContainerLogger(t *testing.T) {
	var out bytes.Buffer
	l := log.NewWithOptions(&out, log.Options{Level: log.DebugLevel})

	img := dylibImage(le, true, types.MH_DYLIB)
	var c Container
	c.SetLogger(l)
	require.NoError(t, c.Open(newCountingStream(img), 0, int64(len(img))))
	_, _, err := c.FindFirstOfLoadCommand(types.LC_UUID)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.Contains(t, out.String(), "opened image")
	assert.Contains(t, out.String(), "cached load commands")
	assert.Contains(t, out.String(), "released caches")
}

func TestSetDefaultLogger(t *testing.T) {
	var out bytes.Buffer
	SetDefaultLogger(log.NewWithOptions(&out, log.Options{Level: log.DebugLevel}))
	t.Cleanup(func() { SetDefaultLogger(nil) })

	var c Container
	assert.Error(t, c.Open(newCountingStream([]byte{1, 2, 3, 4, 5}), 0, 5))
	assert.Contains(t, out.String(), "open failed")
}
