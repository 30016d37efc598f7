package security

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestJoinWithin(t *testing.T) {
	dir := filepath.Join("out", "reports")
	tests := []struct {
		name      string
		file      string
		want      string
		wantError bool
	}{
		{name: "plain file", file: "pt_001_stare_velocity.png", want: filepath.Join(dir, "pt_001_stare_velocity.png")},
		{name: "nested", file: filepath.Join("pt_001", "dashboard.html"), want: filepath.Join(dir, "pt_001", "dashboard.html")},
		{name: "dot segments that stay inside", file: "a/../b.json", want: filepath.Join(dir, "b.json")},
		{name: "parent traversal", file: "../secret.json", wantError: true},
		{name: "deep traversal", file: "a/../../../etc/passwd", wantError: true},
		{name: "absolute", file: "/etc/passwd", wantError: true},
		{name: "directory itself", file: ".", wantError: true},
		{name: "empty", file: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinWithin(dir, tt.file)
			if tt.wantError {
				if err == nil {
					t.Errorf("JoinWithin(%q) = %q, want error", tt.file, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("JoinWithin(%q) unexpected error: %v", tt.file, err)
			}
			if got != tt.want {
				t.Errorf("JoinWithin(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pt_001", "pt_001"},
		{"smooth pursuit", "smooth_pursuit"},
		{"a//b\\c", "a_b_c"},
		{"..hidden..", "hidden"},
		{"__x__", "x"},
		{"fixação", "fixa_o"},
		{"", "unknown"},
		{"???", "unknown"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := SanitizeFilename(strings.Repeat("a", 300))
	if len(long) != maxFilenameLen {
		t.Errorf("long name length = %d, want %d", len(long), maxFilenameLen)
	}
}

func TestStem(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/sub-01/pt_001.xdf", "pt_001"},
		{"session one.xdf", "session_one"},
		{"noext", "noext"},
		{"archive.tar.xdf", "archive.tar"},
	}
	for _, tt := range tests {
		if got := Stem(tt.path); got != tt.want {
			t.Errorf("Stem(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
