package common

import (
	"errors"
	"testing"
)

// ---------- NormalizeHandle ----------

func TestNormalizeHandle_StripsAtAndSpaces(t *testing.T) {
	h, err := NormalizeHandle("  @Alice_01 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != "Alice_01" {
		t.Fatalf("want Alice_01, got %q", h)
	}
}

func TestNormalizeHandle_Rejects(t *testing.T) {
	for _, in := range []string{"", "@", "has space", "way_too_long_handle_x", "bad-dash"} {
		if _, err := NormalizeHandle(in); !errors.Is(err, ErrorInvalidHandle) {
			t.Fatalf("%q: want ErrorInvalidHandle, got %v", in, err)
		}
	}
}

// ---------- ValidateChannel ----------

func TestValidateChannel(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"@news_feed", true},
		{"-1001234567890", true},
		{"123", true},
		{"news", false},
		{"@ab", false},
		{"", false},
	}
	for _, tc := range tests {
		err := ValidateChannel(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if !tc.ok && !errors.Is(err, ErrorInvalidChannel) {
			t.Fatalf("%q: want ErrorInvalidChannel, got %v", tc.in, err)
		}
	}
}
