package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/moment/internal/annotation"
	"github.com/hpungsan/moment/internal/config"
	"github.com/hpungsan/moment/internal/db"
	"github.com/hpungsan/moment/internal/errors"
	"github.com/hpungsan/moment/internal/imaging"
	"github.com/hpungsan/moment/internal/post"
	"github.com/hpungsan/moment/internal/session"
)

// Publisher stores finalized posts in the collection. It is the
// session.PostSink used by every surface.
type Publisher struct {
	db     *sql.DB
	author string
	avatar *string
	now    func() time.Time
	logger *zap.Logger

	last *post.Post
}

var _ session.PostSink = (*Publisher)(nil)

// NewPublisher creates a publisher stamping posts with the configured author.
func NewPublisher(database *sql.DB, cfg *config.Config, logger *zap.Logger) *Publisher {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		db:     database,
		author: cfg.Author,
		avatar: optionalString(cfg.Avatar),
		now:    time.Now,
		logger: logger,
	}
}

// Emit implements session.PostSink.
func (p *Publisher) Emit(ctx context.Context, payload session.Post) error {
	out, err := p.Publish(ctx, payload)
	if err != nil {
		return err
	}
	p.last = out
	return nil
}

// Last returns the most recently published post.
func (p *Publisher) Last() *post.Post {
	return p.last
}

// Publish validates a payload, assigns an id and inserts it.
func (p *Publisher) Publish(ctx context.Context, payload session.Post) (*post.Post, error) {
	if len(payload.Image) == 0 {
		return nil, errors.NewNoImageSelected()
	}
	if _, err := imaging.Inspect(payload.Image); err != nil {
		return nil, errors.NewInvalidImage(err)
	}
	if payload.TextOverlay != nil && !annotation.TextFits(*payload.TextOverlay) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("text_overlay exceeds %d characters",
			annotation.TextLimit(*payload.TextOverlay)))
	}
	if payload.CreatedAt != "" {
		if _, err := ValidateDate(payload.CreatedAt); err != nil {
			return nil, err
		}
	}
	filter := payload.Filter
	if filter == "" {
		filter = imaging.NormalFilter
	}

	now := p.now()
	id, err := newID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	rec := &post.Post{
		ID:          id,
		Author:      p.author,
		Avatar:      p.avatar,
		Caption:     payload.Caption,
		TextOverlay: payload.TextOverlay,
		Location:    payload.Location,
		Weather:     payload.Weather,
		Time:        payload.Time,
		Health:      payload.Health,
		HealthIcon:  payload.HealthIcon,
		Filter:      filter,
		Image:       payload.Image,
		CreatedDate: payload.CreatedAt,
		CreatedAt:   now.Unix(),
	}
	if rec.CreatedDate == "" {
		rec.CreatedDate = now.Format(DateLayout)
	}

	if err := db.Insert(ctx, p.db, rec); err != nil {
		return nil, err
	}
	p.logger.Info("post published",
		zap.String("id", rec.ID),
		zap.String("filter", rec.Filter),
		zap.Int("bytes", len(rec.Image)))
	return rec, nil
}

func newID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
