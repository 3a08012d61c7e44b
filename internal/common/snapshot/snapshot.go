// Package snapshot implements the atomic JSON persistence convention shared
// by the access store and the content graph: write-to-temp-then-rename
// snapshots, a dated-folder backup loop, and a mirror-fetch cold-start path.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/talebox/slepau/internal/circuitbreaker"
)

const (
	secsInHour = 3600
	secsInDay  = 86400
	// epoch used for human-readable backup filenames: 2020-01-01T00:00:00Z.
	backupEpoch = 1577836800
)

// Options configures the persistence conventions for one store.
type Options struct {
	Path         string // primary snapshot path, e.g. DB_PATH
	BackupDir    string // dated-backup folder, e.g. DB_BACKUP_FOLDER
	MirrorURL    string // optional DB_INIT peer to fetch from on cold start
	MagicBean    string // shared secret guarding /api/mirror/<bean>
	Pretty       bool   // pretty-print (debug) vs compact (release)
	BackupPeriod time.Duration

	// Breaker guards the mirror fetch below. Nil disables the guard (every
	// Load retries the mirror regardless of recent failures).
	Breaker *circuitbreaker.Breaker
}

// Load populates dst (a pointer to the store's serializable snapshot type)
// by, in order: fetching MirrorURL if set, else reading Path, else leaving
// dst as its zero value (an empty store).
func Load(ctx context.Context, opts Options, dst any, logger *slog.Logger) {
	if opts.MirrorURL != "" && (opts.Breaker == nil || opts.Breaker.Allow()) {
		url := fmt.Sprintf("%s/api/mirror/%s", opts.MirrorURL, opts.MagicBean)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		ok := false
		if err == nil {
			resp, err := http.DefaultClient.Do(req)
			if err == nil {
				defer resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					body, err := io.ReadAll(resp.Body)
					if err == nil && json.Unmarshal(body, dst) == nil {
						logger.Info("loaded snapshot from mirror", "url", opts.MirrorURL)
						ok = true
					}
				}
			}
		}
		if opts.Breaker != nil {
			if ok {
				opts.Breaker.RecordSuccess()
			} else {
				opts.Breaker.RecordFailure()
			}
		}
		if ok {
			return
		}
		logger.Warn("mirror fetch failed, falling back to local file", "url", opts.MirrorURL)
	}

	data, err := os.ReadFile(opts.Path)
	if err != nil {
		logger.Info("no local snapshot, starting empty", "path", opts.Path)
		return
	}
	if err := json.Unmarshal(data, dst); err != nil {
		logger.Error("local snapshot corrupt, starting empty", "path", opts.Path, "error", err)
		return
	}
	logger.Info("loaded snapshot from disk", "path", opts.Path)
}

// Save atomically writes src (the store's serializable snapshot) to
// opts.Path: encode to a temp file in the same directory, fsync, then
// rename over the destination so readers never observe a partial write.
func Save(opts Options, src any, logger *slog.Logger) error {
	var data []byte
	var err error
	if opts.Pretty {
		data, err = json.MarshalIndent(src, "", "  ")
	} else {
		data, err = json.Marshal(src)
	}
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}

	dir := filepath.Dir(opts.Path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, opts.Path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	logger.Info("snapshot saved", "path", opts.Path)
	return nil
}

// BackupLoop runs until ctx is cancelled, writing a dated full copy of
// whatever getSnapshot() returns roughly every BackupPeriod (default 2h).
func BackupLoop(ctx context.Context, opts Options, getSnapshot func() any, logger *slog.Logger) {
	if opts.BackupDir == "" {
		return
	}
	if err := os.MkdirAll(opts.BackupDir, 0o755); err != nil {
		logger.Error("could not create backup dir", "dir", opts.BackupDir, "error", err)
		return
	}
	period := opts.BackupPeriod
	if period <= 0 {
		period = 2 * time.Hour
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			backupOnce(opts, getSnapshot(), logger)
		}
	}
}

func backupOnce(opts Options, snap any, logger *slog.Logger) {
	days := (time.Now().Unix() - backupEpoch) / secsInDay
	path := filepath.Join(opts.BackupDir, fmt.Sprintf("%d.json", days))
	data, err := json.Marshal(snap)
	if err != nil {
		logger.Error("backup encode failed", "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Error("backup write failed", "path", path, "error", err)
		return
	}
	logger.Info("backed up", "path", path)
}

// MirrorHandler serves the raw snapshot behind the shared-secret magic bean
// path segment, for a peer's cold-start Load to fetch.
func MirrorHandler(magicBean string, getSnapshot func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bean := r.PathValue("bean")
		if bean != magicBean {
			http.Error(w, "who the F are you?", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(getSnapshot())
	}
}
