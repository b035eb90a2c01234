package sync

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/memoryflow/internal/domain"
	"github.com/conorfennell/memoryflow/internal/gitsource"
	"github.com/conorfennell/memoryflow/internal/knol"
	"github.com/conorfennell/memoryflow/internal/parser"
	"github.com/conorfennell/memoryflow/internal/storage"
)

// Options controls a sync run.
type Options struct {
	ReposDir string           // where git sources are cloned; defaults to "repos"
	Now      func() time.Time // defaults to time.Now
	Progress io.Writer        // git progress output, may be nil
}

// Report summarizes a sync run.
type Report struct {
	Sources int `json:"sources"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Errors  int `json:"errors"`
}

// Run iterates over all sources and reconciles them. A failing source is
// logged and skipped; only a failure to list sources aborts the run.
func Run(ctx context.Context, db *storage.DB, opts Options) (Report, error) {
	if opts.ReposDir == "" {
		opts.ReposDir = "repos"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	slog.Info("Starting sync process for all sources...")
	var report Report
	sources, err := db.GetAllSources(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		slog.Info("No sources configured. Add one with: memoryflow add-source <path/or/url.git>")
		return report, nil
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		slog.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)
		report.Sources++

		dir := source.Path
		if source.Type == storage.SourceGit {
			localRepoPath, err := gitURLToLocalPath(opts.ReposDir, source.Path)
			if err != nil {
				slog.Error("Error determining local path for git repo", "url", source.Path, "error", err)
				report.Errors++
				continue
			}
			if err := os.MkdirAll(filepath.Dir(localRepoPath), os.ModePerm); err != nil {
				slog.Error("Failed to create repos directory", "path", localRepoPath, "error", err)
				report.Errors++
				continue
			}
			if err := gitsource.Sync(ctx, source.Path, localRepoPath, opts.Progress); err != nil {
				slog.Error("Error syncing git repo", "url", source.Path, "error", err)
				report.Errors++
				continue
			}
			dir = localRepoPath
		}

		r, err := reconcileLocalSource(ctx, db, source.ID, dir, opts.Now())
		report.Added += r.Added
		report.Removed += r.Removed
		report.Errors += r.Errors
		if err != nil {
			slog.Error("Error reconciling source", "id", source.ID, "path", dir, "error", err)
			report.Errors++
		}
	}
	slog.Info("Sync process complete.", "sources", report.Sources, "added", report.Added, "removed", report.Removed, "errors", report.Errors)
	return report, nil
}

// reconcileLocalSource makes the source's live items match the notes found under dir.
// Unchanged notes keep their item and review progress.
func reconcileLocalSource(ctx context.Context, db *storage.DB, sourceID int64, dir string, now time.Time) (Report, error) {
	var report Report
	var parsed int
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		notes, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			slog.Warn("Failed to parse notes file", "path", path, "error", parseErr)
			report.Errors++
		}
		for _, note := range notes {
			note.Hash = knol.Hash(note)
			parsed++
			if found[note.Hash] {
				continue // duplicate note within the source
			}
			found[note.Hash] = true

			existing, findErr := db.FindItemByHash(ctx, sourceID, note.Hash)
			if findErr != nil {
				slog.Warn("DB check failed", "hash", note.Hash, "error", findErr)
				report.Errors++
				continue
			}
			if existing != nil {
				continue
			}

			slog.Info("New note found, inserting...", "hash", note.Hash)
			item := domain.NewItem(uuid.NewString(), note.Title, note.Body, now)
			item.ImageURL = note.ImageURL
			item.SourceID = sourceID
			item.ContentHash = note.Hash
			if err := db.SaveItem(ctx, item); err != nil {
				slog.Warn("DB insert failed", "hash", note.Hash, "error", err)
				report.Errors++
				continue
			}
			report.Added++
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("walking directory %s: %w", dir, walkErr)
	}

	items, err := db.GetItemsBySourceID(ctx, sourceID)
	if err != nil {
		return report, fmt.Errorf("getting items for source %d: %w", sourceID, err)
	}

	for _, item := range items {
		if found[item.ContentHash] {
			continue
		}
		slog.Info("Orphaned note, deleting", "id", item.ID, "hash", item.ContentHash)
		if err := db.DeleteItem(ctx, item.ID, now); err != nil {
			slog.Warn("Failed to delete orphaned item", "id", item.ID, "error", err)
			report.Errors++
			continue
		}
		report.Removed++
	}

	if err := db.UpdateSourceLastScanned(ctx, sourceID, now); err != nil {
		slog.Warn("Failed to update last scanned for source", "source_id", sourceID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", dir,
		"parsed_notes", parsed,
		"added", report.Added,
		"orphaned_deleted", report.Removed,
		"errors", report.Errors,
	)
	return report, nil
}

// SourceType guesses whether path names a git remote or a local directory.
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") || strings.HasPrefix(path, "https://") {
		return storage.SourceGit
	}
	return storage.SourceLocal
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
