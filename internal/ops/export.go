package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/moment/internal/config"
	"github.com/hpungsan/moment/internal/db"
	"github.com/hpungsan/moment/internal/errors"
	"github.com/hpungsan/moment/internal/post"
)

// ExportSchemaVersion is written into every backup header.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path           string // optional, default: ~/.moment/exports/<author>-<timestamp>.jsonl
	Author         string // optional filter
	IncludeDeleted bool
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a backup file.
type ExportHeader struct {
	MomentExport  bool   `json:"_moment_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// ExportRecord is one backup line. Images are base64 in JSON.
type ExportRecord struct {
	MomentExport bool `json:"_moment_export,omitempty"`
	post.Post
}

// Export writes posts, images included, to a JSONL backup file.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		var err error
		exportPath, err = defaultExportPath(input.Author, now)
		if err != nil {
			return nil, err
		}
	}

	// Default paths are validated too; the author is user-controlled
	if err := ValidatePath(exportPath, PathCheckWrite, PathKindBackup, cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	count := 0
	err := writeAtomically(exportPath, PathKindBackup, func(file *os.File) error {
		enc := json.NewEncoder(file)
		if err := enc.Encode(ExportHeader{
			MomentExport:  true,
			SchemaVersion: ExportSchemaVersion,
			ExportedAt:    now.Unix(),
		}); err != nil {
			return errors.NewInternal(err)
		}

		rows, err := db.StreamForExport(ctx, database, input.Author, input.IncludeDeleted)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			if ctx.Err() != nil {
				return errors.NewCancelled("export")
			}
			p, err := db.ScanPostFromRows(rows)
			if err != nil {
				return errors.NewInternal(err)
			}
			if err := enc.Encode(ExportRecord{Post: *p}); err != nil {
				return errors.NewInternal(err)
			}
			count++
		}
		if err := rows.Err(); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{Path: exportPath, Count: count, ExportedAt: now.Unix()}, nil
}

// writeAtomically writes through a temp file in the destination directory and
// renames it into place, leaving any existing file untouched on failure.
func writeAtomically(path string, kind PathKind, write func(*os.File) error) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := createTemp(tempPath, kind)
	if err != nil {
		if _, ok := err.(*errors.MomentError); ok {
			return err
		}
		return errors.NewInternal(fmt.Errorf("failed to create %s file: %w", kind, err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := write(file); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Close before rename (required on Windows)
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("destination is a symlink")
	}

	// On Windows os.Rename fails when the destination exists; fail rather
	// than delete-then-rename.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("destination already exists; overwriting is not supported on Windows")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize file: %w", err))
	}

	success = true
	return nil
}

// defaultExportPath returns ~/.moment/exports/<author|all>-<timestamp>.jsonl.
func defaultExportPath(author string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	name := "all"
	if author != "" {
		name = SanitizeForFilename(author)
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl", name, now.Format("2006-01-02T150405"))), nil
}
