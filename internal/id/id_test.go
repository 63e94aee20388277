package id

import (
	"testing"
)

func TestFormatFunctions(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "FormatStudent with seq 1", got: FormatStudent(1), want: "S-00001"},
		{name: "FormatStudent with seq 12345", got: FormatStudent(12345), want: "S-12345"},
		{name: "FormatAccount with seq 7", got: FormatAccount(7), want: "A-00007"},
		{name: "Format class", got: Format(TypeClass, 42), want: "C-00042"},
		{name: "Format instructor", got: Format(TypeInstructor, 3), want: "I-00003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType Type
		wantSeq  int
		wantErr  bool
	}{
		{name: "student", input: "S-00001", wantType: TypeStudent, wantSeq: 1},
		{name: "account", input: "A-00420", wantType: TypeAccount, wantSeq: 420},
		{name: "class", input: "C-00010", wantType: TypeClass, wantSeq: 10},
		{name: "instructor", input: "I-99999", wantType: TypeInstructor, wantSeq: 99999},
		{name: "surrounding whitespace", input: "  S-00002 ", wantType: TypeStudent, wantSeq: 2},
		{name: "lowercase prefix", input: "s-00001", wantErr: true},
		{name: "too few digits", input: "S-001", wantErr: true},
		{name: "unknown prefix", input: "T-00001", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotSeq, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Parse(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if gotType != tt.wantType {
				t.Errorf("Parse(%q) type = %q, want %q", tt.input, gotType, tt.wantType)
			}
			if gotSeq != tt.wantSeq {
				t.Errorf("Parse(%q) seq = %d, want %d", tt.input, gotSeq, tt.wantSeq)
			}
		})
	}
}

func TestIsUUID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "550e8400-e29b-41d4-a716-446655440000", want: true},
		{input: "550E8400-E29B-41D4-A716-446655440000", want: true},
		{input: "550e8400e29b41d4a716446655440000", want: false},
		{input: "S-00001", want: false},
		{input: "", want: false},
	}

	for _, tt := range tests {
		if got := IsUUID(tt.input); got != tt.want {
			t.Errorf("IsUUID(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsFriendlyID(t *testing.T) {
	if !IsFriendlyID("S-00001") {
		t.Error("IsFriendlyID(S-00001) = false, want true")
	}
	if IsFriendlyID("550e8400-e29b-41d4-a716-446655440000") {
		t.Error("IsFriendlyID(uuid) = true, want false")
	}
}
