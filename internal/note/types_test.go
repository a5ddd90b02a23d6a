package note

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{"draft", StatusDraft, false},
		{"published", StatusPublished, false},
		{"archived", StatusArchived, false},
		{"", "", true},
		{"Published", "", true},
		{"deleted", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseStatus(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRelationType(t *testing.T) {
	for _, valid := range []string{"supersedes", "supports", "contradicts", "related", "duplicate"} {
		got, err := ParseRelationType(valid)
		if err != nil {
			t.Errorf("ParseRelationType(%q) unexpected error: %v", valid, err)
		}
		if string(got) != valid {
			t.Errorf("ParseRelationType(%q) = %q", valid, got)
		}
	}

	// superseded_by is synthetic and must not be accepted as input.
	for _, invalid := range []string{"superseded_by", "", "SUPPORTS", "similar"} {
		_, err := ParseRelationType(invalid)
		if !errors.Is(err, ErrUnknownRelationType) {
			t.Errorf("ParseRelationType(%q) = %v, want ErrUnknownRelationType", invalid, err)
		}
	}
}

func TestRelationType_Soft(t *testing.T) {
	tests := []struct {
		typ  RelationType
		soft bool
	}{
		{RelationSupports, true},
		{RelationContradicts, true},
		{RelationRelated, true},
		{RelationSupersedes, false},
		{RelationDuplicate, false},
		{RelationSupersededBy, false},
	}

	for _, tt := range tests {
		if got := tt.typ.Soft(); got != tt.soft {
			t.Errorf("%s.Soft() = %v, want %v", tt.typ, got, tt.soft)
		}
	}
}
