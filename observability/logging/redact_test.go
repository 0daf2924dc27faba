package logging

import "testing"

func TestMaskFieldRedactsSensitiveKeys(t *testing.T) {
	attr := MaskField("bankName", "First Bank")
	if attr.Value.String() != RedactedValue {
		t.Fatalf("expected %q, got %q", RedactedValue, attr.Value.String())
	}
	attr = MaskField("accountNumber", "12345")
	if attr.Value.String() != RedactedValue {
		t.Fatal("account numbers must be masked")
	}
	attr = MaskField("reference", "INV-001")
	if attr.Value.String() != RedactedValue {
		t.Fatal("payment references must be masked")
	}
}

func TestMaskFieldPassesAllowlistedKeys(t *testing.T) {
	attr := MaskField("merchant", "stl1example")
	if attr.Value.String() != "stl1example" {
		t.Fatalf("allowlisted key must pass through, got %q", attr.Value.String())
	}
	attr = MaskField("RequestID", "abc-123")
	if attr.Value.String() != "abc-123" {
		t.Fatal("allowlist matching must be case-insensitive")
	}
}

func TestMaskFieldKeepsEmptyValues(t *testing.T) {
	attr := MaskField("bankName", "")
	if attr.Value.String() != "" {
		t.Fatalf("empty values stay empty, got %q", attr.Value.String())
	}
}

func TestMaskValue(t *testing.T) {
	if MaskValue("secret") != RedactedValue {
		t.Fatal("non-empty values must be masked")
	}
	if MaskValue("  ") != "  " {
		t.Fatal("blank values pass through unchanged")
	}
}

func TestRedactionAllowlistSorted(t *testing.T) {
	keys := RedactionAllowlist()
	if len(keys) == 0 {
		t.Fatal("allowlist must not be empty")
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("allowlist not sorted at %d: %v", i, keys)
		}
	}
	for _, key := range keys {
		if !IsAllowlisted(key) {
			t.Fatalf("listed key %q must be allowlisted", key)
		}
	}
}
