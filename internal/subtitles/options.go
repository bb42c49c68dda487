package subtitles

import (
	"fmt"
	"path/filepath"
	"strings"

	"scriptsync/internal/config"
)

// Format names a subtitle container.
type Format string

const (
	FormatASS Format = config.FormatASS
	FormatSRT Format = config.FormatSRT
)

const (
	defaultFontName = "Arial"
	defaultFontSize = 22
)

// Options controls serialization.
type Options struct {
	// Format is used when the output path has no recognised extension.
	Format   Format
	FontName string
	FontSize int
}

// OptionsFromConfig maps the [subtitles] section onto writer options.
func OptionsFromConfig(cfg config.Subtitles) Options {
	return Options{
		Format:   Format(cfg.Format),
		FontName: cfg.FontName,
		FontSize: cfg.FontSize,
	}
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.FontName) == "" {
		o.FontName = defaultFontName
	}
	if o.FontSize <= 0 {
		o.FontSize = defaultFontSize
	}
	if o.Format == "" {
		o.Format = FormatASS
	}
	return o
}

// ResolveFormat picks the format for path. A .ass or .srt extension wins over
// the configured format.
func ResolveFormat(path string, configured Format) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ass":
		return FormatASS, nil
	case ".srt":
		return FormatSRT, nil
	}
	switch configured {
	case "", FormatASS:
		return FormatASS, nil
	case FormatSRT:
		return FormatSRT, nil
	default:
		return "", fmt.Errorf("unsupported subtitle format %q", configured)
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}
