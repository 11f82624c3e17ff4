package ops

import (
	"strings"
	"time"

	"github.com/hpungsan/moment/internal/catalog"
	"github.com/hpungsan/moment/internal/config"
	"github.com/hpungsan/moment/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// DateLayout is the calendar-day format of posts.
const DateLayout = "2006-01-02"

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// ValidateID trims and checks a post id.
func ValidateID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	return id, nil
}

// ValidateDate checks an optional YYYY-MM-DD filter.
func ValidateDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "", nil
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", errors.NewInvalidRequest("date must be YYYY-MM-DD")
	}
	return date, nil
}

// LoadCatalog returns the catalog configured by cfg.CatalogPath, or the
// built-in one.
func LoadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg == nil || cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	return cat, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
