package pdfpages

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"scriptsync/internal/services"
)

// PdftoppmCommand is the poppler rasteriser binary.
const PdftoppmCommand = "pdftoppm"

const pagePrefix = "page"

var pageFilePattern = regexp.MustCompile(`^` + pagePrefix + `-(\d+)\.png$`)

// Options controls rasterisation.
type Options struct {
	DPI int
	// RotateDegrees turns each page counter-clockwise by a quarter-turn multiple.
	RotateDegrees int
	// PageLimit stops after the first N pages; 0 renders all.
	PageLimit int
}

// Page is one rendered page image.
type Page struct {
	Index int
	Path  string
}

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Renderer wraps pdftoppm.
type Renderer struct {
	binary string
	runner CommandRunner
}

// NewRenderer returns a renderer using binary (pdftoppm when empty).
func NewRenderer(binary string) *Renderer {
	if binary == "" {
		binary = PdftoppmCommand
	}
	return &Renderer{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (r *Renderer) WithCommandRunner(runner CommandRunner) {
	r.runner = runner
}

// Render writes page PNGs for document into outDir and returns them in page
// order with zero-based indexes.
func (r *Renderer) Render(ctx context.Context, document, outDir string, opts Options) ([]Page, error) {
	if _, err := os.Stat(document); err != nil {
		return nil, services.Wrap(services.ErrNotFound, "extract", "rasterise", "script document not readable", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "extract", "rasterise", "create page dir", err)
	}
	if err := removeStalePages(outDir); err != nil {
		return nil, services.Wrap(services.ErrTransient, "extract", "rasterise", "clear page dir", err)
	}

	args := []string{"-png"}
	if opts.DPI > 0 {
		args = append(args, "-r", strconv.Itoa(opts.DPI))
	}
	if opts.PageLimit > 0 {
		args = append(args, "-l", strconv.Itoa(opts.PageLimit))
	}
	args = append(args, document, filepath.Join(outDir, pagePrefix))
	if err := r.run(ctx, args...); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "extract", "rasterise", "", err)
	}

	pages, err := listPages(outDir)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "extract", "rasterise", "list pages", err)
	}
	if len(pages) == 0 {
		return nil, services.Wrap(services.ErrValidation, "extract", "rasterise", "document produced no pages", nil)
	}
	if opts.RotateDegrees%360 != 0 {
		for _, page := range pages {
			if err := RotateFile(page.Path, opts.RotateDegrees); err != nil {
				return nil, services.Wrap(services.ErrTransient, "extract", "rotate", filepath.Base(page.Path), err)
			}
		}
	}
	return pages, nil
}

func (r *Renderer) run(ctx context.Context, args ...string) error {
	if r.runner != nil {
		return r.runner(ctx, r.binary, args...)
	}
	cmd := exec.CommandContext(ctx, r.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", r.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// listPages collects pdftoppm output. Page numbers are zero-padded to the
// width of the document's page count, so sort numerically.
func listPages(dir string) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type numbered struct {
		number int
		path   string
	}
	var found []numbered
	for _, entry := range entries {
		match := pageFilePattern.FindStringSubmatch(entry.Name())
		if match == nil || entry.IsDir() {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		found = append(found, numbered{number: n, path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].number < found[j].number })
	pages := make([]Page, len(found))
	for i, f := range found {
		pages[i] = Page{Index: i, Path: f.path}
	}
	return pages, nil
}

func removeStalePages(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if pageFilePattern.MatchString(entry.Name()) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
