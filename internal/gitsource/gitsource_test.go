package gitsource

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// makeOrigin creates a local repository with one committed notes file.
func makeOrigin(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("B: hello\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if _, err := wt.Add("notes.md"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_, err = wt.Commit("add notes", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return dir
}

func TestSyncNotARepository(t *testing.T) {
	if err := Sync(context.Background(), "https://example.com/notes.git", t.TempDir(), nil); err == nil {
		t.Error("Sync should fail when the path exists but is not a git repo")
	}
}

func TestSync(t *testing.T) {
	// go-git's file transport runs the git binaries for local clones.
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	origin := makeOrigin(t)
	local := filepath.Join(t.TempDir(), "clone")
	ctx := context.Background()

	t.Run("clones a missing repository", func(t *testing.T) {
		if err := Sync(ctx, origin, local, nil); err != nil {
			t.Fatalf("Sync: %v", err)
		}
		if _, err := os.Stat(filepath.Join(local, "notes.md")); err != nil {
			t.Errorf("cloned file missing: %v", err)
		}
	})

	t.Run("pulls an existing clone", func(t *testing.T) {
		if err := Sync(ctx, origin, local, nil); err != nil {
			t.Errorf("second Sync: %v", err)
		}
	})
}
