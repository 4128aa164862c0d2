package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/entity"
)

// MaxImageBytes caps a single card image read from disk.
const MaxImageBytes = 20 << 20

// FileResult is the per-file outcome of a directory load.
type FileResult struct {
	Path string
	Err  string
}

// DirStats summarizes a directory load.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Loaded  uint32
	Failed  uint32
}

// LoadPath reads one image into an Upload named after its base file name.
func LoadPath(path string) (entity.Upload, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return entity.Upload{}, err
	}
	if !AllowedExt(filepath.Ext(abs)) {
		return entity.Upload{}, fmt.Errorf("unsupported or missing extension: %q", filepath.Ext(abs))
	}
	info, err := os.Stat(abs)
	if err != nil {
		return entity.Upload{}, err
	}
	if info.Size() == 0 {
		return entity.Upload{}, fmt.Errorf("%s is empty", abs)
	}
	if info.Size() > MaxImageBytes {
		return entity.Upload{}, fmt.Errorf("%s is %d bytes, limit is %d", abs, info.Size(), MaxImageBytes)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return entity.Upload{}, err
	}
	return entity.Upload{
		Name:     filepath.Base(abs),
		MimeType: constants.MimeTypeForPath(abs),
		Data:     data,
	}, nil
}
