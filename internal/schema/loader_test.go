package schema

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func invoiceModel(t *testing.T) *Model {
	t.Helper()
	m, err := FromMap(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"vendor": map[string]any{"type": "string"},
			"total":  map[string]any{"type": "number"},
			"lines": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"sku": map[string]any{"type": "string"},
						"qty": map[string]any{"type": "integer"},
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	return m
}

func TestValidateAcceptsNullLeaves(t *testing.T) {
	m := invoiceModel(t)
	doc := []byte(`{"vendor": null, "total": null, "lines": null}`)
	if err := m.Validate(doc); err != nil {
		t.Errorf("null leaves must validate: %v", err)
	}
}

func TestValidateRejectsUnknownKeys(t *testing.T) {
	m := invoiceModel(t)
	doc := []byte(`{"vendor": "acme", "total": 1, "lines": null, "surprise": true}`)
	if err := m.Validate(doc); err == nil {
		t.Error("unknown key must fail strict validation")
	}
}

func TestValidateRequiresAllProperties(t *testing.T) {
	m := invoiceModel(t)
	doc := []byte(`{"vendor": "acme"}`)
	if err := m.Validate(doc); err == nil {
		t.Error("missing declared properties must fail strict validation")
	}
}

func TestValidateRejectsWrongTypes(t *testing.T) {
	m := invoiceModel(t)
	doc := []byte(`{"vendor": "acme", "total": "twelve", "lines": null}`)
	if err := m.Validate(doc); err == nil {
		t.Error("string in a number field must fail validation")
	}
}

func TestValidateNestedObjects(t *testing.T) {
	m := invoiceModel(t)
	good := []byte(`{"vendor": "acme", "total": 9.5, "lines": [{"sku": "a1", "qty": 2}]}`)
	if err := m.Validate(good); err != nil {
		t.Errorf("valid nested doc rejected: %v", err)
	}
	bad := []byte(`{"vendor": "acme", "total": 9.5, "lines": [{"sku": "a1", "qty": 2, "color": "red"}]}`)
	if err := m.Validate(bad); err == nil {
		t.Error("unknown key in nested object must fail")
	}
}

func TestStrictifyDescriptor(t *testing.T) {
	m := invoiceModel(t)
	desc := m.Descriptor()

	if desc["additionalProperties"] != false {
		t.Error("root object must forbid unknown keys")
	}
	required, _ := desc["required"].([]string)
	if len(required) != 3 {
		t.Errorf("required = %v, want all 3 properties", desc["required"])
	}

	props := desc["properties"].(map[string]any)
	vendor := props["vendor"].(map[string]any)
	types, _ := vendor["type"].([]any)
	if len(types) != 2 || types[1] != "null" {
		t.Errorf("vendor type = %v, want nullable", vendor["type"])
	}
}

func TestDescriptorStableAcrossBuilds(t *testing.T) {
	first := invoiceModel(t).DescriptorJSON()
	for i := 0; i < 10; i++ {
		if got := invoiceModel(t).DescriptorJSON(); got != first {
			t.Fatalf("descriptor differs between builds:\n%s\n---\n%s", first, got)
		}
	}

	required, _ := invoiceModel(t).Descriptor()["required"].([]string)
	if !sort.StringsAreSorted(required) {
		t.Errorf("required = %v, want sorted property names", required)
	}
}

func TestStrictifyDefaultsArrayItems(t *testing.T) {
	m, err := FromMap(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tags": map[string]any{"type": "array"},
		},
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if err := m.Validate([]byte(`{"tags": ["a", null]}`)); err != nil {
		t.Errorf("untyped array must accept nullable strings: %v", err)
	}
	if err := m.Validate([]byte(`{"tags": [7]}`)); err == nil {
		t.Error("untyped array must default items to string")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	body := `{"type":"object","properties":{"name":{"type":"string"}}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Validate([]byte(`{"name":"x"}`)); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load("/no/such/schema.json"); err == nil {
		t.Error("missing file must error")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte(`{not json`), 0o600)
	if _, err := Load(path); err == nil {
		t.Error("malformed schema must error")
	}
}
