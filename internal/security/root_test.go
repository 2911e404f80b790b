package security

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func openTestRoot(t *testing.T) (*Root, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { root.Close() })
	return root, root.Path()
}

func TestNormalize(t *testing.T) {
	root, dir := openTestRoot(t)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"simple file", "test.txt", "test.txt", nil},
		{"subdirectory", "subdir/test.txt", "subdir/test.txt", nil},
		{"hidden file", ".env", ".env", nil},
		{"dot slash", "./test.txt", "test.txt", nil},
		{"redundant slashes", "a//b///c.txt", "a/b/c.txt", nil},
		{"dot segments", "a/./b/../c.txt", "a/c.txt", nil},
		{"absolute inside", filepath.Join(dir, "x", "y.txt"), "x/y.txt", nil},

		{"parent", "../test.txt", "", ErrPathEscapes},
		{"nested parent", "a/../../test.txt", "", ErrPathEscapes},
		{"root itself", ".", "", ErrEmptyPath},
		{"absolute outside", filepath.Join(filepath.Dir(dir), "other.txt"), "", ErrAbsolutePath},
		{"empty", "", "", ErrEmptyPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := root.Normalize(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Normalize(%q): got %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLocalRejectsTamperedNames(t *testing.T) {
	root, _ := openTestRoot(t)

	for _, name := range []string{"", ".", "../x", "a/../b", "/etc/passwd", "a//b", "./a"} {
		if _, err := root.Local(name); err == nil {
			t.Errorf("Local(%q) should fail", name)
		}
	}
	if p, err := root.Local("a/b.txt"); err != nil || p != filepath.FromSlash("a/b.txt") {
		t.Errorf("Local(a/b.txt) = %q, %v", p, err)
	}
}

func TestCreateAndRead(t *testing.T) {
	root, dir := openTestRoot(t)

	f, err := root.Create("a/b/c.txt", 0600, 0700, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.WriteString("content"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "a", "b", "c.txt"))
	if err != nil || string(data) != "content" {
		t.Fatalf("File on disk: %q, %v", data, err)
	}

	got, err := root.ReadFile("a/b/c.txt")
	if err != nil || string(got) != "content" {
		t.Errorf("ReadFile = %q, %v", got, err)
	}

	info, err := root.Stat("a/b/c.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != int64(len("content")) {
		t.Errorf("Size: got %d", info.Size())
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("Mode: got %v, want 0600", info.Mode().Perm())
	}
}

func TestCreateOverwrite(t *testing.T) {
	root, _ := openTestRoot(t)

	f, err := root.Create("file.txt", 0600, 0700, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	f.WriteString("first")
	f.Close()

	if _, err := root.Create("file.txt", 0600, 0700, false); !errors.Is(err, fs.ErrExist) {
		t.Errorf("Create without overwrite: got %v, want fs.ErrExist", err)
	}

	f, err = root.Create("file.txt", 0600, 0700, true)
	if err != nil {
		t.Fatalf("Create with overwrite failed: %v", err)
	}
	f.WriteString("2")
	f.Close()

	got, _ := root.ReadFile("file.txt")
	if string(got) != "2" {
		t.Errorf("Content after overwrite: %q, want %q", got, "2")
	}
}

func TestCreateUnderFile(t *testing.T) {
	root, _ := openTestRoot(t)
	f, err := root.Create("plain", 0600, 0700, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	f.Close()

	if _, err := root.Create("plain/child.txt", 0600, 0700, false); err == nil {
		t.Error("Creating below a regular file should fail")
	}
}

func TestEscapePrevention(t *testing.T) {
	root, dir := openTestRoot(t)
	outside := t.TempDir()

	if _, err := root.Create("../escaped.txt", 0600, 0700, true); err == nil {
		t.Error("Create with .. should fail")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escaped.txt")); err == nil {
		t.Error("File was created outside the root")
	}

	if runtime.GOOS == "windows" {
		return
	}
	if err := os.Symlink(outside, filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if _, err := root.Create("link/escaped.txt", 0600, 0700, true); err == nil {
		t.Error("Create through a symlink leaving the root should fail")
	}
	if _, err := os.Stat(filepath.Join(outside, "escaped.txt")); err == nil {
		t.Error("File was created through the symlink")
	}
	if _, err := root.Open("link"); err == nil {
		t.Error("Open through a symlink leaving the root should fail")
	}
}
