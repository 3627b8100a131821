package dicomuid

import (
	"strings"
	"testing"
)

// TestNew verifies the 2.25 arc format: a decimal UUID payload under the
// 64-character DICOM UID limit.
func TestNew(t *testing.T) {
	uid := New()

	if !strings.HasPrefix(uid, "2.25.") {
		t.Errorf("Expected 2.25. prefix, got %s", uid)
	}
	if len(uid) > 64 {
		t.Errorf("Expected UID within 64 characters, got %d", len(uid))
	}

	payload := strings.TrimPrefix(uid, "2.25.")
	if payload == "" {
		t.Fatal("Expected non-empty payload")
	}
	for _, r := range payload {
		if r < '0' || r > '9' {
			t.Fatalf("Expected decimal payload, got %s", uid)
		}
	}
	if payload[0] == '0' && len(payload) > 1 {
		t.Errorf("Expected no leading zero in payload, got %s", uid)
	}
}

// TestNewUnique verifies that consecutive UIDs differ.
func TestNewUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		uid := New()
		if seen[uid] {
			t.Fatalf("Duplicate UID generated: %s", uid)
		}
		seen[uid] = true
	}
}
