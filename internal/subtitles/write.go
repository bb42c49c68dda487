package subtitles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scriptsync/internal/alignment"
	"scriptsync/internal/fileutil"
	"scriptsync/internal/services"
)

// Written describes a serialized subtitle file.
type Written struct {
	Path   string
	Format Format
	Events int
}

// Render serializes events in the given format.
func Render(events []alignment.Event, format Format, opts Options) (string, error) {
	opts = opts.withDefaults()
	switch format {
	case FormatASS:
		return renderASS(events, opts), nil
	case FormatSRT:
		return renderSRT(events), nil
	default:
		return "", fmt.Errorf("unsupported subtitle format %q", format)
	}
}

// Write serializes events to path. The format comes from the path extension,
// falling back to opts.Format.
func Write(path string, events []alignment.Event, opts Options) (Written, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Written{}, services.Wrap(services.ErrValidation, "subtitles", "write", "output path is required", nil)
	}
	opts = opts.withDefaults()
	format, err := ResolveFormat(path, opts.Format)
	if err != nil {
		return Written{}, services.Wrap(services.ErrConfiguration, "subtitles", "write", "", err)
	}
	content, err := Render(events, format, opts)
	if err != nil {
		return Written{}, services.Wrap(services.ErrConfiguration, "subtitles", "write", "", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Written{}, services.Wrap(services.ErrConfiguration, "subtitles", "write", "create output directory", err)
	}
	if err := fileutil.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return Written{}, services.Wrap(services.ErrTransient, "subtitles", "write", "write subtitle file", err)
	}
	return Written{Path: path, Format: format, Events: len(events)}, nil
}
