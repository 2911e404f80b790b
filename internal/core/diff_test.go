package core

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/illarion/eris/internal/storage"
)

func TestIsText(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty", nil, true},
		{"ascii", []byte("KEY=value\n"), true},
		{"utf8", []byte("naïve café ✓\n"), true},
		{"nul", []byte("abc\x00def"), false},
		{"invalid utf8", []byte{0xff, 0xfe, 'a'}, false},
		{"control heavy", []byte("\x01\x02\x03\x04abc"), false},
		{"tabs", []byte("a\tb\r\n"), true},
		{"long with cut rune", append([]byte(strings.Repeat("a", TextSampleSize-1)), "✓"...), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsText(tt.data); got != tt.want {
				t.Errorf("IsText() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateUnifiedDiff(t *testing.T) {
	if got := GenerateUnifiedDiff("same", []byte("x\n"), []byte("x\n")); got != "" {
		t.Errorf("Identical content should produce no diff, got %q", got)
	}

	patch := GenerateUnifiedDiff("app.env", []byte("A=1\nB=2\n"), []byte("A=1\nB=3\n"))
	if !strings.HasPrefix(patch, "--- vault/app.env\n+++ local/app.env\n@@") {
		t.Errorf("Unexpected header:\n%s", patch)
	}
	if !strings.Contains(patch, "-B=2") || !strings.Contains(patch, "+B=3") {
		t.Errorf("Unexpected patch:\n%s", patch)
	}

	binary := GenerateUnifiedDiff("key.bin", []byte{0, 1, 2}, []byte{0, 1, 3})
	if binary != "Binary file key.bin has changed\n" {
		t.Errorf("Unexpected binary diff %q", binary)
	}
}

func TestSecureFileMode(t *testing.T) {
	tests := []struct {
		mode uint32
		want uint32
	}{
		{0644, 0600},
		{0755, 0700},
		{0077, 0600},
		{0, 0600},
		{0400, 0400},
	}
	for _, tt := range tests {
		if got := secureFileMode(tt.mode); uint32(got) != tt.want {
			t.Errorf("secureFileMode(%o) = %o, want %o", tt.mode, got, tt.want)
		}
	}
}

func TestFilterEntries(t *testing.T) {
	entries := []storage.Entry{{Name: "a.env"}, {Name: "b.txt"}, {Name: "dir/c.env"}}
	names := func(es []storage.Entry) []string {
		var out []string
		for _, e := range es {
			out = append(out, e.Name)
		}
		return out
	}

	tests := []struct {
		patterns []string
		want     []string
	}{
		{[]string{"*.env"}, []string{"a.env"}},
		{[]string{"dir/*.env"}, []string{"dir/c.env"}},
		{[]string{"./b.txt"}, []string{"b.txt"}},
		{[]string{"b.txt", "*.txt"}, []string{"b.txt"}},
		{[]string{"**.env"}, []string{"a.env", "dir/c.env"}},
		{[]string{"dir/**"}, []string{"dir/c.env"}},
		{[]string{"none"}, nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, names(filterEntries(entries, tt.patterns))); diff != "" {
			t.Errorf("filterEntries(%v) mismatch (-want +got):\n%s", tt.patterns, diff)
		}
	}
}
