package ocr

import (
	"context"
	"fmt"
	"strings"
)

// TesseractConfig holds classical OCR configuration.
type TesseractConfig struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TessdataDir string
	PSM         int // e.g. 6 for a uniform block of text; 0 = default
}

// TesseractOCR runs the tesseract binary against a rendered page image.
type TesseractOCR struct {
	cfg    TesseractConfig
	runner Runner
}

func NewTesseractOCR(cfg TesseractConfig, runner Runner) *TesseractOCR {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &TesseractOCR{cfg: cfg, runner: runner}
}

// ExtractPage implements PageOCR.
func (t *TesseractOCR) ExtractPage(ctx context.Context, imagePath string) (string, error) {
	args := []string{imagePath, "stdout", "-l", t.cfg.Lang}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", t.cfg.PSM))
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (stderr: %s)", err, truncate(string(errb), 1<<10))
	}
	return strings.TrimRight(string(out), "\n"), nil
}
