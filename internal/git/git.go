package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Status contains git integration status information
type Status struct {
	IsRepo       bool
	VaultFile    string
	VaultTracked bool
	Tracked      []string // plaintext entries tracked by git
	Unignored    []string // plaintext entries not covered by .gitignore
}

func git(ctx context.Context, workDir string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workDir
	return cmd
}

// IsRepo checks if the working directory is inside a git work tree
func IsRepo(ctx context.Context, workDir string) bool {
	return git(ctx, workDir, "rev-parse", "--is-inside-work-tree").Run() == nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(ctx context.Context, workDir, name string) bool {
	output, err := git(ctx, workDir, "ls-files", "--", name).Output()
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a file is ignored by any .gitignore
func IsIgnored(ctx context.Context, workDir, name string) bool {
	// check-ignore exits 0 only for ignored paths
	return git(ctx, workDir, "check-ignore", "-q", "--", name).Run() == nil
}

// Check inspects the vault file and the entry names relative to workDir.
// Outside a git work tree only IsRepo is set.
func Check(ctx context.Context, workDir, vaultFile string, names []string) *Status {
	status := &Status{VaultFile: vaultFile}
	if !IsRepo(ctx, workDir) {
		return status
	}
	status.IsRepo = true
	status.VaultTracked = IsTracked(ctx, workDir, vaultFile)

	for _, name := range names {
		if IsTracked(ctx, workDir, name) {
			status.Tracked = append(status.Tracked, name)
		} else if !IsIgnored(ctx, workDir, name) {
			status.Unignored = append(status.Unignored, name)
		}
	}
	return status
}

// Format renders the status for display, empty outside a git work tree
func (s *Status) Format() string {
	if !s.IsRepo {
		return ""
	}

	var result strings.Builder
	result.WriteString("\nGit:\n")
	if s.VaultTracked {
		fmt.Fprintf(&result, "   ok: %s is tracked by git\n", s.VaultFile)
	} else {
		fmt.Fprintf(&result, "   warning: %s not tracked (run: git add %s)\n", s.VaultFile, s.VaultFile)
	}

	for _, name := range s.Tracked {
		fmt.Fprintf(&result, "   error: plaintext %s is tracked (run: git rm --cached %s)\n", name, name)
	}
	for _, name := range s.Unignored {
		fmt.Fprintf(&result, "   warning: %s not in .gitignore\n", name)
	}
	if len(s.Tracked) == 0 && len(s.Unignored) == 0 {
		result.WriteString("   ok: no plaintext entries exposed to git\n")
	}
	return result.String()
}
