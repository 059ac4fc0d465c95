// Package preview opens media URLs in an external image viewer.
package preview

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

// ErrNoViewer is returned when neither a viewer nor a system handler could be started.
var ErrNoViewer = errors.New("no image viewer available")

// Launcher opens media URLs in the configured viewer or system default
type Launcher struct {
	command string   // configured viewer command, empty for auto-detection
	args    []string // additional arguments for the viewer
	logger  *slog.Logger

	// start runs a command without waiting for it; replaced in tests.
	start    func(name string, args ...string) error
	lookPath func(file string) (string, error)
}

// candidateViewers defines the preferred viewer order for each platform
var candidateViewers = map[string][]string{
	"darwin":  {"open-a:Preview"},
	"linux":   {"imv", "feh", "eog", "gwenview"},
	"windows": {},
}

// NewLauncher creates a launcher. An empty command auto-detects a viewer.
func NewLauncher(command string, args []string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		command:  command,
		args:     args,
		logger:   logger,
		start:    startCommand,
		lookPath: exec.LookPath,
	}
}

func startCommand(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Open shows url; any cache-busting suffix is dropped first.
func (l *Launcher) Open(url string) error {
	url = domain.StripCacheBust(url)
	if url == "" {
		return fmt.Errorf("%w: empty url", ErrNoViewer)
	}

	// Tier 1: user configured a specific viewer
	if l.command != "" {
		args := append(append([]string{}, l.args...), url)
		l.logger.Info("opening media with configured viewer", "command", l.command, "url", url)
		return l.start(l.command, args...)
	}

	// Tier 2: known viewers for this platform
	if name, err := l.detectAndOpen(url); err == nil {
		l.logger.Info("opened media with detected viewer", "viewer", name, "url", url)
		return nil
	}

	// Tier 3: system default (open/xdg-open/start)
	return l.openDefault(url)
}

func (l *Launcher) detectAndOpen(url string) (string, error) {
	candidates, ok := candidateViewers[runtime.GOOS]
	if !ok {
		candidates = candidateViewers["linux"]
	}

	for _, c := range candidates {
		var err error
		if app, ok := strings.CutPrefix(c, "open-a:"); ok {
			err = l.start("open", "-a", app, url)
		} else if _, err = l.lookPath(c); err == nil {
			err = l.start(c, append(append([]string{}, l.args...), url)...)
		}
		if err == nil {
			return c, nil
		}
		l.logger.Debug("viewer not available", "viewer", c, "error", err)
	}
	return "", ErrNoViewer
}

// openDefault opens the URL using the system default handler
func (l *Launcher) openDefault(url string) error {
	l.logger.Info("opening media with system default", "os", runtime.GOOS, "url", url)

	var err error
	switch runtime.GOOS {
	case "darwin":
		err = l.start("open", url)
	case "windows":
		err = l.start("cmd", "/c", "start", "", url)
	default:
		err = l.start("xdg-open", url)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoViewer, err)
	}
	return nil
}
