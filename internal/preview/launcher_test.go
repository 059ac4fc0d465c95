package preview

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

func recordingLauncher(command string, args []string, fail bool) (*Launcher, *[]call) {
	var calls []call
	l := NewLauncher(command, args, nil)
	l.start = func(name string, args ...string) error {
		calls = append(calls, call{name: name, args: args})
		if fail {
			return errors.New("cannot start")
		}
		return nil
	}
	l.lookPath = func(file string) (string, error) { return "", errors.New("not found") }
	return l, &calls
}

func TestOpenWithConfiguredViewerStripsCacheBust(t *testing.T) {
	l, calls := recordingLauncher("feh", []string{"--scale-down"}, false)

	require.NoError(t, l.Open("https://cdn/x.jpg?_t=99"))
	require.Len(t, *calls, 1)
	assert.Equal(t, "feh", (*calls)[0].name)
	assert.Equal(t, []string{"--scale-down", "https://cdn/x.jpg"}, (*calls)[0].args)
}

func TestOpenFallsBackToSystemDefault(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("checks the xdg-open fallback")
	}
	l, calls := recordingLauncher("", nil, false)

	require.NoError(t, l.Open("https://cdn/x.jpg"))
	require.Len(t, *calls, 1)
	assert.Equal(t, "xdg-open", (*calls)[0].name)
}

func TestOpenReportsFailure(t *testing.T) {
	l, _ := recordingLauncher("", nil, true)
	assert.ErrorIs(t, l.Open("https://cdn/x.jpg"), ErrNoViewer)
	assert.ErrorIs(t, l.Open(""), ErrNoViewer)
}
