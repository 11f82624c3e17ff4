package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hpungsan/moment/internal/annotation"
	"github.com/hpungsan/moment/internal/config"
	"github.com/hpungsan/moment/internal/db"
	"github.com/hpungsan/moment/internal/errors"
	"github.com/hpungsan/moment/internal/imaging"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError ImportMode = "error" // fail on any collision or bad line (atomic)
	ImportModeSkip  ImportMode = "skip"  // keep existing posts, import the rest
)

// maxImportLine bounds one JSONL line; posts carry base64 images.
const maxImportLine = 32 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes a line that could not be imported.
type ImportError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importLine struct {
	line   int
	record ExportRecord
}

// Import restores posts from a JSONL backup written by Export.
func Import(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeSkip {
		return nil, errors.NewInvalidRequest("mode must be one of: error, skip")
	}
	if err := ValidatePath(input.Path, PathCheckRead, PathKindBackup, cfg); err != nil {
		return nil, err
	}

	file, err := openSource(input.Path, PathKindBackup)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, problems := parseBackup(bufio.NewScanner(file))
	if input.Mode == ImportModeError && len(problems) > 0 {
		return &ImportOutput{Errors: problems}, nil
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	out := &ImportOutput{Errors: problems}
	for _, r := range records {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("import")
		}
		exists, err := db.Exists(ctx, tx, r.record.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			if input.Mode == ImportModeError {
				return &ImportOutput{Errors: []ImportError{{
					Line:    r.line,
					ID:      r.record.ID,
					Code:    "ID_COLLISION",
					Message: "post already exists",
				}}}, nil
			}
			out.Skipped++
			continue
		}
		p := r.record.Post
		if err := db.Insert(ctx, tx, &p); err != nil {
			return nil, err
		}
		out.Imported++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if out.Errors == nil {
		out.Errors = []ImportError{}
	}
	return out, nil
}

// parseBackup reads records, skipping the header and collecting bad lines.
func parseBackup(scanner *bufio.Scanner) ([]importLine, []ImportError) {
	scanner.Buffer(make([]byte, 0, 64<<10), maxImportLine)

	var (
		records  []importLine
		problems []ImportError
		lineNum  int
	)
	for scanner.Scan() {
		lineNum++
		var rec ExportRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			problems = append(problems, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if rec.MomentExport {
			continue
		}
		if msg := validateRecord(&rec); msg != "" {
			problems = append(problems, ImportError{
				Line:    lineNum,
				ID:      rec.ID,
				Code:    "INVALID_RECORD",
				Message: msg,
			})
			continue
		}
		records = append(records, importLine{line: lineNum, record: rec})
	}
	if err := scanner.Err(); err != nil {
		problems = append(problems, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	return records, problems
}

func validateRecord(rec *ExportRecord) string {
	switch {
	case rec.ID == "":
		return "missing id field"
	case rec.Author == "":
		return "missing author field"
	case len(rec.Image) == 0:
		return "missing image field"
	}
	if _, err := imaging.Inspect(rec.Image); err != nil {
		return fmt.Sprintf("invalid image: %v", err)
	}
	if rec.TextOverlay != nil && !annotation.TextFits(*rec.TextOverlay) {
		return fmt.Sprintf("text_overlay exceeds %d characters", annotation.TextLimit(*rec.TextOverlay))
	}
	if _, err := ValidateDate(rec.CreatedDate); err != nil || rec.CreatedDate == "" {
		return "created_date must be YYYY-MM-DD"
	}
	if rec.Filter == "" {
		rec.Filter = imaging.NormalFilter
	}
	return ""
}
