package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	if out, err := exec.Command("git", "init", "-q", dir).CombinedOutput(); err != nil {
		t.Fatalf("git init failed: %v\n%s", err, out)
	}
	return dir
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)
	for name, content := range map[string]string{
		".eris":       "vault",
		".gitignore":  "ignored.env\n",
		"ignored.env": "A=1",
		"tracked.env": "B=2",
		"loose.env":   "C=3",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	add := exec.Command("git", "add", ".eris", "tracked.env")
	add.Dir = dir
	if out, err := add.CombinedOutput(); err != nil {
		t.Fatalf("git add failed: %v\n%s", err, out)
	}

	status := Check(ctx, dir, ".eris", []string{"ignored.env", "tracked.env", "loose.env"})
	want := &Status{
		IsRepo:       true,
		VaultFile:    ".eris",
		VaultTracked: true,
		Tracked:      []string{"tracked.env"},
		Unignored:    []string{"loose.env"},
	}
	if diff := cmp.Diff(want, status); diff != "" {
		t.Errorf("Check mismatch (-want +got):\n%s", diff)
	}

	out := status.Format()
	if !strings.Contains(out, "plaintext tracked.env is tracked") || !strings.Contains(out, "loose.env not in .gitignore") {
		t.Errorf("Unexpected format:\n%s", out)
	}
}

func TestFormatOutsideRepo(t *testing.T) {
	if got := (&Status{}).Format(); got != "" {
		t.Errorf("Format outside a repo = %q, want empty", got)
	}
	clean := &Status{IsRepo: true, VaultFile: ".eris"}
	if !strings.Contains(clean.Format(), "not tracked (run: git add .eris)") {
		t.Errorf("Unexpected format:\n%s", clean.Format())
	}
}
