// Package post defines the stored post record and its browse summary.
package post

// Post is a published post as stored in the collection.
type Post struct {
	// ID is a ULID assigned on publish
	ID string `json:"id"`

	// Author and Avatar come from config at publish time
	Author string  `json:"author"`
	Avatar *string `json:"avatar,omitempty"`

	Caption     string  `json:"caption"`
	TextOverlay *string `json:"text_overlay,omitempty"`
	Location    *string `json:"location,omitempty"`
	Weather     *string `json:"weather,omitempty"`
	Time        *string `json:"time,omitempty"`
	Health      *string `json:"health,omitempty"`
	HealthIcon  *string `json:"health_icon,omitempty"`

	// Filter is the catalog filter name applied to Image
	Filter string `json:"filter"`

	// Image is the composed JPEG
	Image []byte `json:"image,omitempty"`

	// CreatedDate is the local calendar day of the post (YYYY-MM-DD)
	CreatedDate string `json:"created_date"`

	// CreatedAt is the Unix timestamp of insertion
	CreatedAt int64 `json:"created_at"`

	// DeletedAt is the Unix timestamp for soft delete (nullable)
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// Summary is a post without its image bytes, used by list operations.
type Summary struct {
	ID          string  `json:"id"`
	Author      string  `json:"author"`
	Avatar      *string `json:"avatar,omitempty"`
	Caption     string  `json:"caption"`
	TextOverlay *string `json:"text_overlay,omitempty"`
	Location    *string `json:"location,omitempty"`
	Weather     *string `json:"weather,omitempty"`
	Time        *string `json:"time,omitempty"`
	Health      *string `json:"health,omitempty"`
	HealthIcon  *string `json:"health_icon,omitempty"`
	Filter      string  `json:"filter"`
	ImageBytes  int     `json:"image_bytes"`
	CreatedDate string  `json:"created_date"`
	CreatedAt   int64   `json:"created_at"`
	DeletedAt   *int64  `json:"deleted_at,omitempty"`
}

// ToSummary strips the image bytes.
func (p *Post) ToSummary() Summary {
	return Summary{
		ID:          p.ID,
		Author:      p.Author,
		Avatar:      p.Avatar,
		Caption:     p.Caption,
		TextOverlay: p.TextOverlay,
		Location:    p.Location,
		Weather:     p.Weather,
		Time:        p.Time,
		Health:      p.Health,
		HealthIcon:  p.HealthIcon,
		Filter:      p.Filter,
		ImageBytes:  len(p.Image),
		CreatedDate: p.CreatedDate,
		CreatedAt:   p.CreatedAt,
		DeletedAt:   p.DeletedAt,
	}
}

// Overlays returns the set annotation labels in display order.
func (p *Post) Overlays() []string {
	var out []string
	for _, s := range []*string{p.Location, p.Weather, p.Time, p.Health} {
		if s != nil && *s != "" {
			out = append(out, *s)
		}
	}
	return out
}
