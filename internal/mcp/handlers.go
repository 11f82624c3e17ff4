package mcp

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/moment/internal/annotation"
	"github.com/hpungsan/moment/internal/camera"
	"github.com/hpungsan/moment/internal/catalog"
	"github.com/hpungsan/moment/internal/config"
	"github.com/hpungsan/moment/internal/errors"
	"github.com/hpungsan/moment/internal/imaging"
	"github.com/hpungsan/moment/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{db: db, cfg: cfg, logger: logger}
}

// Request types for JSON unmarshaling

// ComposeRequest represents the post_compose tool arguments.
type ComposeRequest struct {
	ImageBase64  string             `json:"image_base64,omitempty"`
	ImagePath    string             `json:"image_path,omitempty"`
	Facing       string             `json:"facing,omitempty"`
	Filter       string             `json:"filter,omitempty"`
	Text         string             `json:"text,omitempty"`
	Caption      string             `json:"caption,omitempty"`
	CaptionIndex *int               `json:"caption_index,omitempty"`
	Location     bool               `json:"location,omitempty"`
	Weather      bool               `json:"weather,omitempty"`
	Time         bool               `json:"time,omitempty"`
	Health       *ops.ComposeHealth `json:"health,omitempty"`
}

// FetchRequest represents the post_fetch tool arguments.
type FetchRequest struct {
	ID             string `json:"id"`
	IncludeImage   *bool  `json:"include_image,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// ListRequest represents the post_list tool arguments.
type ListRequest struct {
	Author         string `json:"author,omitempty"`
	Date           string `json:"date,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// DeleteRequest represents the post_delete tool arguments.
type DeleteRequest struct {
	ID string `json:"id"`
}

// SaveImageRequest represents the post_save_image tool arguments.
type SaveImageRequest struct {
	ID   string `json:"id"`
	Path string `json:"path,omitempty"`
}

// ExportRequest represents the post_export tool arguments.
type ExportRequest struct {
	Path           string `json:"path,omitempty"`
	Author         string `json:"author,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// ImportRequest represents the post_import tool arguments.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// PurgeRequest represents the post_purge tool arguments.
type PurgeRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

// HealthRequest represents the catalog_health tool arguments.
type HealthRequest struct {
	Category string `json:"category,omitempty"`
}

// HandleCompose handles the post_compose tool call.
func (h *Handlers) HandleCompose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ComposeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var image []byte
	switch {
	case input.ImageBase64 != "" && input.ImagePath != "":
		return errorResult(errors.NewInvalidRequest("image_base64 and image_path are mutually exclusive")), nil
	case input.ImageBase64 != "":
		image, err = base64.StdEncoding.DecodeString(input.ImageBase64)
		if err != nil {
			return errorResult(errors.NewInvalidRequest("image_base64 is not valid base64")), nil
		}
	case input.ImagePath != "":
		image, err = ops.ReadImage(input.ImagePath, h.cfg)
		if err != nil {
			return errorResult(err), nil
		}
	}

	result, err := ops.Compose(ctx, h.db, h.cfg, ops.ComposeInput{
		Image:        image,
		Facing:       camera.Facing(input.Facing),
		Filter:       input.Filter,
		Text:         input.Text,
		Caption:      input.Caption,
		CaptionIndex: input.CaptionIndex,
		Location:     input.Location,
		Weather:      input.Weather,
		Time:         input.Time,
		Health:       input.Health,
	}, ops.WithLogger(h.logger))
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFetch handles the post_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	// Images are large; agents opt in.
	includeImage := input.IncludeImage
	if includeImage == nil {
		f := false
		includeImage = &f
	}

	result, err := ops.Fetch(ctx, h.db, ops.FetchInput{
		ID:             input.ID,
		IncludeDeleted: input.IncludeDeleted,
		IncludeImage:   includeImage,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleList handles the post_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.db, ops.ListInput{
		Author:         input.Author,
		Date:           input.Date,
		Limit:          input.Limit,
		Offset:         input.Offset,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDelete handles the post_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.db, ops.DeleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSaveImage handles the post_save_image tool call.
func (h *Handlers) HandleSaveImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveImageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SaveImage(ctx, h.db, h.cfg, ops.SaveImageInput{
		ID:   input.ID,
		Path: input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the post_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, ops.ExportInput{
		Path:           input.Path,
		Author:         input.Author,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleImport handles the post_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var mode ops.ImportMode
	switch input.Mode {
	case "", "error":
		mode = ops.ImportModeError
	case "skip":
		mode = ops.ImportModeSkip
	default:
		return errorResult(errors.NewInvalidRequest("mode must be one of: error, skip")), nil
	}

	result, err := ops.Import(ctx, h.db, h.cfg, ops.ImportInput{
		Path: input.Path,
		Mode: mode,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePurge handles the post_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Purge(ctx, h.db, ops.PurgeInput{OlderThanDays: input.OlderThanDays})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// FiltersOutput is the catalog_filters result.
type FiltersOutput struct {
	Filters []string `json:"filters"`
	Default string   `json:"default"`
}

// HandleFilters handles the catalog_filters tool call.
func (h *Handlers) HandleFilters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cat, err := ops.LoadCatalog(h.cfg)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(FiltersOutput{Filters: cat.FilterNames(), Default: imaging.NormalFilter})
}

// IndexedText is a selectable catalog entry with its picker index.
type IndexedText struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// HandleCaptions handles the catalog_captions tool call.
func (h *Handlers) HandleCaptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cat, err := ops.LoadCatalog(h.cfg)
	if err != nil {
		return errorResult(err), nil
	}
	items := make([]IndexedText, len(cat.Captions))
	for i, c := range cat.Captions {
		items[i] = IndexedText{Index: i, Text: c}
	}
	return successResult(map[string]any{"captions": items})
}

// HealthEntry is one catalog_health record.
type HealthEntry struct {
	Index int `json:"index"`
	catalog.Record
}

// HandleHealth handles the catalog_health tool call.
func (h *Handlers) HandleHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HealthRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	categories := []annotation.HealthCategory{
		annotation.CategoryActivity,
		annotation.CategoryMood,
		annotation.CategoryChallenge,
	}
	if strings.TrimSpace(input.Category) != "" {
		c, err := annotation.ParseCategory(input.Category)
		if err != nil {
			return errorResult(errors.NewInvalidRequest(err.Error())), nil
		}
		categories = []annotation.HealthCategory{c}
	}

	cat, err := ops.LoadCatalog(h.cfg)
	if err != nil {
		return errorResult(err), nil
	}

	out := make(map[string][]HealthEntry, len(categories))
	for _, c := range categories {
		records := cat.Records(c)
		entries := make([]HealthEntry, len(records))
		for i, r := range records {
			entries[i] = HealthEntry{Index: i, Record: r}
		}
		out[string(c)] = entries
	}
	return successResult(out)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var mErr *errors.MomentError
	if stderrors.As(err, &mErr) {
		// Keep wrapper context such as "caption: ..." in the message.
		msg := mErr.Message
		if err != error(mErr) {
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    mErr.Code,
			"message": msg,
			"status":  mErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if mErr.Code != errors.ErrInternal && mErr.Details != nil {
			errorObj["details"] = mErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
