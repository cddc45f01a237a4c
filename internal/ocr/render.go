package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// renderPages rasterizes every page of the PDF at path into PNG files and
// returns their paths in page order. The cleanup func removes the temp dir.
func (d *Dispatcher) renderPages(ctx context.Context, path string) ([]string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "dx-pp-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			d.logger.Warn("ocr.render.cleanup_failed", "dir", tmpDir, "error", rerr)
		}
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := d.runner.Run(ctx, d.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", d.cfg.DPI), "-png", path, prefix)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("pdftoppm: %w (stderr: %s)", err, truncate(string(errb), 1<<10))
	}

	// pdftoppm names output prefix-1.png, prefix-2.png, ... zero-padded for
	// multi-digit page counts, so a lexical sort preserves page order.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if d.cfg.MaxPages > 0 && len(matches) > d.cfg.MaxPages {
		matches = matches[:d.cfg.MaxPages]
	}
	if len(matches) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("pdftoppm produced no images")
	}
	return matches, cleanup, nil
}
