package cursor

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	encoded, err := New("student", "S-00042").Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if strings.Contains(encoded, "=") {
		t.Errorf("Encode() = %q, want unpadded base64url", encoded)
	}

	c, err := Decode(encoded, "student")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if c.LastID != "S-00042" || c.Kind != "student" {
		t.Errorf("Decode() = %+v", c)
	}
}

func TestEncodeRequiresFields(t *testing.T) {
	if _, err := New("", "S-00001").Encode(); err == nil {
		t.Error("expected error for missing kind")
	}
	if _, err := New("student", "").Encode(); err == nil {
		t.Error("expected error for missing last ID")
	}
}

func TestDecodeErrors(t *testing.T) {
	valid, err := New("account", "A-00003").Encode()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		encoded string
		kind    string
		wantErr string
	}{
		{"empty", "", "student", "empty cursor"},
		{"not base64", "!!!", "student", "invalid cursor encoding"},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("nope")), "student", "invalid cursor format"},
		{"missing id", base64.RawURLEncoding.EncodeToString([]byte(`{"kind":"student"}`)), "student", "missing last ID"},
		{"wrong kind", valid, "student", `issued for "account"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.encoded, tt.kind)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
