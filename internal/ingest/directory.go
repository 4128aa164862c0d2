package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/cardscan/internal/entity"
)

// LoadDirectory walks root and reads every image with an allowed extension, skipping hidden
// entries if requested. Unreadable files are reported in the results and do not stop the walk.
func LoadDirectory(ctx context.Context, root string, skipHidden bool) ([]entity.Upload, []FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}

	var (
		uploads []entity.Upload
		results []FileResult
		stats   DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		up, err := LoadPath(path)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		uploads = append(uploads, up)
		results = append(results, FileResult{Path: path})
		stats.Loaded++
		return nil
	})
	if err != nil {
		return uploads, results, stats, fmt.Errorf("walk: %w", err)
	}
	return uploads, results, stats, nil
}
