package common

import (
	"testing"
	"time"

	"github.com/mkelechi/docextract/constants"
)

func validConfig() *Config {
	return &Config{
		ApplicationID: "app",
		Database:      DatabaseConfig{DSN: "postgres://u:p@localhost/db"},
		Extractor: ExtractorConfig{
			MaxTokens:            1000,
			TokenOverlap:         100,
			ScanDensityThreshold: 100,
		},
		OCR: OCRConfig{Method: constants.OCRMethodTesseract},
		LLM: LLMConfig{APIKey: "sk-test", Timeout: time.Minute},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidateRequiresDSNAndKey(t *testing.T) {
	c := validConfig()
	c.Database.DSN = ""
	if err := c.Validate(); err == nil {
		t.Error("missing DSN must fail")
	}

	c = validConfig()
	c.LLM.APIKey = ""
	if err := c.Validate(); err == nil {
		t.Error("missing API key must fail")
	}
}

func TestValidateCoversPipelineChecks(t *testing.T) {
	// Callers run Validate alone; it must surface pipeline problems too.
	c := validConfig()
	c.OCR.Method = "easyocr"
	if err := c.Validate(); err == nil {
		t.Error("Validate must reject an unknown OCR method")
	}
}

func TestValidatePipeline(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"tesseract method", func(c *Config) { c.OCR.Method = constants.OCRMethodTesseract }, true},
		{"vlm method", func(c *Config) { c.OCR.Method = constants.OCRMethodVLM }, true},
		{"unknown method", func(c *Config) { c.OCR.Method = "easyocr" }, false},
		{"empty method", func(c *Config) { c.OCR.Method = "" }, false},
		{"zero max tokens", func(c *Config) { c.Extractor.MaxTokens = 0 }, false},
		{"negative overlap", func(c *Config) { c.Extractor.TokenOverlap = -1 }, false},
		{"overlap equals max", func(c *Config) { c.Extractor.TokenOverlap = c.Extractor.MaxTokens }, false},
		{"overlap over max", func(c *Config) { c.Extractor.TokenOverlap = c.Extractor.MaxTokens + 1 }, false},
		{"negative density threshold", func(c *Config) { c.Extractor.ScanDensityThreshold = -5 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			err := c.ValidatePipeline()
			if tc.ok && err != nil {
				t.Errorf("rejected: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("accepted invalid pipeline config")
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("DX_TEST_STR", "hello")
	t.Setenv("DX_TEST_INT", "42")
	t.Setenv("DX_TEST_DUR", "250ms")
	t.Setenv("DX_TEST_BAD", "not-a-number")

	if got := getEnv("DX_TEST_STR", "fallback"); got != "hello" {
		t.Errorf("getEnv = %q", got)
	}
	if got := getEnv("DX_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnv fallback = %q", got)
	}
	if got := getEnvAsInt("DX_TEST_INT", 7); got != 42 {
		t.Errorf("getEnvAsInt = %d", got)
	}
	if got := getEnvAsInt("DX_TEST_BAD", 7); got != 7 {
		t.Errorf("getEnvAsInt bad value = %d, want fallback", got)
	}
	if got := getEnvAsDuration("DX_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Errorf("getEnvAsDuration = %v", got)
	}
}
