package ops

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hpungsan/moment/internal/config"
	"github.com/hpungsan/moment/internal/db"
	"github.com/hpungsan/moment/internal/errors"
	"github.com/hpungsan/moment/internal/imaging"
)

// MaxImageFileBytes bounds gallery reads.
const MaxImageFileBytes = 32 << 20

// SaveImageInput contains parameters for the SaveImage operation.
type SaveImageInput struct {
	ID   string
	Path string // optional, default: ~/.moment/exports/<id>.jpg
}

// SaveImageOutput contains the result of the SaveImage operation.
type SaveImageOutput struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// SaveImage writes a post's composed image to a JPEG file.
func SaveImage(ctx context.Context, database *sql.DB, cfg *config.Config, input SaveImageInput) (*SaveImageOutput, error) {
	id, err := ValidateID(input.ID)
	if err != nil {
		return nil, err
	}

	path := input.Path
	if path == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, SanitizeForFilename(id)+".jpg")
	}
	if err := ValidatePath(path, PathCheckWrite, PathKindImage, cfg); err != nil {
		return nil, err
	}

	p, err := db.GetByID(ctx, database, id, false)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create image directory: %w", err))
	}
	err = writeAtomically(path, PathKindImage, func(f *os.File) error {
		if _, err := f.Write(p.Image); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &SaveImageOutput{ID: id, Path: path, Bytes: len(p.Image)}, nil
}

// ReadImage loads a gallery image from an allowed directory and checks that
// it decodes.
func ReadImage(path string, cfg *config.Config) ([]byte, error) {
	if err := ValidatePath(path, PathCheckRead, PathKindImage, cfg); err != nil {
		return nil, err
	}
	f, err := openSource(path, PathKindImage)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageFileBytes+1))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if len(data) > MaxImageFileBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("image exceeds %d bytes", MaxImageFileBytes))
	}
	if _, err := imaging.Inspect(data); err != nil {
		return nil, errors.NewInvalidImage(err)
	}
	return data, nil
}
