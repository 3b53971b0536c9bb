package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// RetentionTarget selects the files in Dir whose names match Pattern.
// Paths listed in Exclude are never removed.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// PruneResult summarizes one retention sweep.
type PruneResult struct {
	Removed int
	Bytes   int64
	Failed  int
}

// CleanupOldLogs removes target files last modified more than retentionDays
// ago and logs one log_pruned summary when anything was removed. A
// retentionDays value of 0 keeps everything.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) PruneResult {
	var result PruneResult
	if retentionDays <= 0 {
		return result
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	keep := excludedPaths(targets)

	for _, target := range targets {
		for _, candidate := range expiredFiles(target, cutoff) {
			if _, skip := keep[candidate.path]; skip {
				continue
			}
			if err := os.Remove(candidate.path); err != nil {
				result.Failed++
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String("path", candidate.path),
					Error(err),
					String(FieldErrorHint, "check file permissions and log_dir ownership"),
					String(FieldImpact, "old log file remains on disk"),
				)
				continue
			}
			result.Removed++
			result.Bytes += candidate.size
		}
	}

	if result.Removed > 0 {
		logger.Info("old logs pruned",
			String(FieldEventType, "log_pruned"),
			Int("files", result.Removed),
			String("freed", humanize.IBytes(uint64(result.Bytes))),
			Int("retention_days", retentionDays),
		)
	}
	return result
}

type expiredFile struct {
	path string
	size int64
}

func expiredFiles(target RetentionTarget, cutoff time.Time) []expiredFile {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	pattern := strings.TrimSpace(target.Pattern)

	var out []expiredFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		out = append(out, expiredFile{path: absPath(filepath.Join(dir, entry.Name())), size: info.Size()})
	}
	return out
}

func excludedPaths(targets []RetentionTarget) map[string]struct{} {
	keep := make(map[string]struct{})
	for _, target := range targets {
		for _, path := range target.Exclude {
			if trimmed := strings.TrimSpace(path); trimmed != "" {
				keep[absPath(trimmed)] = struct{}{}
			}
		}
	}
	return keep
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
