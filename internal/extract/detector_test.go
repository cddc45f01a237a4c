package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// fakeRunner returns canned stdout for the first matching command name.
type fakeRunner struct {
	stdout map[string][]byte
	err    error
	calls  [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return nil, []byte("boom"), f.err
	}
	return f.stdout[name], nil, nil
}

func pageText(chars int) string {
	return strings.Repeat("a", chars)
}

func TestClassifyNativeDocument(t *testing.T) {
	// Two pages well above the density threshold.
	out := pageText(400) + "\f" + pageText(380) + "\f"
	r := &fakeRunner{stdout: map[string][]byte{"pdftotext": []byte(out)}}
	d := NewDetector("pdftotext", 100, r, nil)

	cls, err := d.Classify(context.Background(), "/tmp/native.pdf")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Scanned {
		t.Errorf("density %.0f over threshold must classify native", cls.Density)
	}
	if cls.PageCount != 2 {
		t.Errorf("pages = %d, want 2", cls.PageCount)
	}
	if len(cls.PageTexts) != 2 {
		t.Errorf("page texts = %d, want 2", len(cls.PageTexts))
	}
}

func TestClassifyScannedDocument(t *testing.T) {
	// Sparse text layer: 30 chars over 2 pages is far below 100 chars/page.
	out := pageText(20) + "\f" + pageText(10) + "\f"
	r := &fakeRunner{stdout: map[string][]byte{"pdftotext": []byte(out)}}
	d := NewDetector("pdftotext", 100, r, nil)

	cls, err := d.Classify(context.Background(), "/tmp/scan.pdf")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !cls.Scanned {
		t.Errorf("density %.0f under threshold must classify scanned", cls.Density)
	}
}

func TestClassifyThresholdBoundary(t *testing.T) {
	// Exactly at the threshold counts as native; only below is scanned.
	r := &fakeRunner{stdout: map[string][]byte{"pdftotext": []byte(pageText(100) + "\f")}}
	d := NewDetector("pdftotext", 100, r, nil)

	cls, err := d.Classify(context.Background(), "/tmp/edge.pdf")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Scanned {
		t.Error("density equal to threshold must classify native")
	}
}

func TestClassifyEmptyOutput(t *testing.T) {
	r := &fakeRunner{stdout: map[string][]byte{"pdftotext": []byte("")}}
	d := NewDetector("pdftotext", 100, r, nil)

	cls, err := d.Classify(context.Background(), "/tmp/empty.pdf")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !cls.Scanned {
		t.Error("a document with no text layer must classify scanned")
	}
}

func TestClassifyPdftotextFailure(t *testing.T) {
	r := &fakeRunner{err: fmt.Errorf("exit status 1")}
	d := NewDetector("pdftotext", 100, r, nil)

	if _, err := d.Classify(context.Background(), "/tmp/broken.pdf"); err == nil {
		t.Fatal("expected error when pdftotext fails")
	}
}

func TestClassifyInvokesPdftotextWithLayout(t *testing.T) {
	r := &fakeRunner{stdout: map[string][]byte{"pdftotext": []byte(pageText(500))}}
	d := NewDetector("pdftotext", 100, r, nil)

	if _, err := d.Classify(context.Background(), "/tmp/x.pdf"); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(r.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(r.calls))
	}
	args := strings.Join(r.calls[0], " ")
	if !strings.Contains(args, "-layout") || !strings.HasSuffix(args, "-") {
		t.Errorf("pdftotext args = %q", args)
	}
}
