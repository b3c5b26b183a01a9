package backend

import (
	"context"
	"testing"
)

func TestKindIsValid(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{kind: KindMemory, want: true},
		{kind: KindSheets, want: true},
		{kind: Kind("sqlite"), want: false},
		{kind: Kind(""), want: false},
		{kind: Kind("Memory"), want: false},
	}
	for _, tt := range tests {
		if got := tt.kind.IsValid(); got != tt.want {
			t.Errorf("Kind(%q).IsValid() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestNewMirrorMemory(t *testing.T) {
	mirror, err := NewMirror(context.Background(), KindMemory)
	if err != nil {
		t.Fatalf("NewMirror(memory): %v", err)
	}
	if mirror == nil {
		t.Fatal("NewMirror(memory) returned nil mirror")
	}
}

func TestNewMirrorUnknownKind(t *testing.T) {
	if _, err := NewMirror(context.Background(), Kind("carrier-pigeon")); err == nil {
		t.Fatal("unknown kind should be rejected")
	}
}

func TestNewMirrorSheetsWithoutCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	if _, err := NewMirror(context.Background(), KindSheets); err == nil {
		t.Fatal("sheets mirror without a spreadsheet ID should fail")
	}
}
