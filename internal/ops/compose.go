package ops

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/moment/internal/annotation"
	"github.com/hpungsan/moment/internal/camera"
	"github.com/hpungsan/moment/internal/catalog"
	"github.com/hpungsan/moment/internal/config"
	"github.com/hpungsan/moment/internal/errors"
	"github.com/hpungsan/moment/internal/imaging"
	"github.com/hpungsan/moment/internal/session"
)

// ComposeInput contains parameters for the Compose operation.
type ComposeInput struct {
	Image        []byte        // gallery image; empty means capture from the camera
	Facing       camera.Facing // camera facing when capturing, default: environment
	Filter       string        // default: Normal
	Text         string        // text overlay, capped
	Caption      string
	CaptionIndex *int // AI caption suggestion; overrides Caption
	Location     bool
	Weather      bool
	Time         bool
	Health       *ComposeHealth
}

// ComposeHealth selects a health record by picker category and index.
type ComposeHealth struct {
	Category string `json:"category"`
	Index    int    `json:"index"`
}

// ComposeOutput contains the result of the Compose operation.
type ComposeOutput struct {
	ID          string   `json:"id"`
	Filter      string   `json:"filter"`
	Caption     string   `json:"caption"`
	TextOverlay *string  `json:"text_overlay,omitempty"`
	Overlays    []string `json:"overlays,omitempty"`
	CreatedDate string   `json:"created_date"`
	ImageBytes  int      `json:"image_bytes"`
	Source      string   `json:"source"` // "gallery" or "camera"
	Notices     []string `json:"notices,omitempty"`
}

type composeOptions struct {
	logger   *zap.Logger
	driver   camera.Driver
	catalog  *catalog.Catalog
	clock    func() time.Time
	encoders []imaging.Encoder
}

// ComposeOption customizes Compose.
type ComposeOption func(*composeOptions)

// WithLogger sets the logger used by the pipeline and controller.
func WithLogger(l *zap.Logger) ComposeOption {
	return func(o *composeOptions) { o.logger = l }
}

// WithCameraDriver replaces the synthetic camera used for captures.
func WithCameraDriver(d camera.Driver) ComposeOption {
	return func(o *composeOptions) { o.driver = d }
}

// WithCatalog replaces the configured catalog.
func WithCatalog(c *catalog.Catalog) ComposeOption {
	return func(o *composeOptions) { o.catalog = c }
}

// WithClock fixes the clock used for the time capsule and post date.
func WithClock(clock func() time.Time) ComposeOption {
	return func(o *composeOptions) { o.clock = clock }
}

// WithEncoderChain replaces the pipeline encoder chain.
func WithEncoderChain(encoders ...imaging.Encoder) ComposeOption {
	return func(o *composeOptions) { o.encoders = encoders }
}

// Compose runs one capture session end to end: gallery import or camera
// capture, filter, annotations, finalize and publish.
func Compose(ctx context.Context, database *sql.DB, cfg *config.Config, input ComposeInput, opts ...ComposeOption) (*ComposeOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	o := composeOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.catalog == nil {
		cat, err := LoadCatalog(cfg)
		if err != nil {
			return nil, err
		}
		o.catalog = cat
	}

	// Validate before touching the camera
	if input.Filter != "" && !o.catalog.Has(input.Filter) {
		return nil, errors.NewInvalidRequest("unknown filter: " + input.Filter)
	}
	var healthCategory annotation.HealthCategory
	if input.Health != nil {
		c, err := annotation.ParseCategory(input.Health.Category)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		healthCategory = c
	}
	facing := input.Facing
	switch facing {
	case "":
		facing = camera.FacingBack
	case camera.FacingFront, camera.FacingBack:
	default:
		return nil, errors.NewInvalidRequest("facing must be one of: user, environment")
	}

	var pipelineOpts []imaging.Option
	if len(o.encoders) > 0 {
		pipelineOpts = append(pipelineOpts, imaging.WithEncoders(o.encoders...))
	}

	var notices []string
	publisher := NewPublisher(database, cfg, o.logger)
	publisher.now = o.clock

	var cam *camera.Manager
	source := "gallery"
	if len(input.Image) == 0 {
		source = "camera"
		driver := o.driver
		if driver == nil {
			driver = camera.NewSyntheticDriver(camera.SyntheticConfig{Devices: camera.DefaultDevices()})
		}
		cam = camera.NewManager(driver, o.logger)
	}

	ctrl := session.New(session.Options{
		Camera:            cam,
		Pipeline:          imaging.NewPipeline(cfg.JPEGQuality, o.logger, pipelineOpts...),
		Catalog:           o.catalog,
		Sink:              publisher,
		Notifier:          session.NotifierFunc(func(n session.Notice) { notices = append(notices, n.Message) }),
		Generator:         annotation.Generator{Clock: o.clock},
		KeyboardThreshold: cfg.KeyboardThreshold,
		Clock:             o.clock,
		Logger:            o.logger,
	})
	defer ctrl.Close()

	if cam == nil {
		if err := ctrl.SelectFromGallery(ctx, input.Image); err != nil {
			return nil, err
		}
	} else {
		if err := ctrl.StartCamera(ctx, facing); err != nil {
			return nil, err
		}
		if err := ctrl.CameraError(); err != nil {
			return nil, err
		}
		if err := ctrl.Capture(ctx); err != nil {
			return nil, err
		}
	}

	if input.Filter != "" && input.Filter != imaging.NormalFilter {
		if err := ctrl.OpenFilters(); err != nil {
			return nil, err
		}
		if _, err := ctrl.PreviewFilter(input.Filter); err != nil {
			return nil, err
		}
		if err := ctrl.ConfirmFilter(); err != nil {
			return nil, err
		}
	}

	if err := applyAnnotations(ctrl, input, healthCategory); err != nil {
		return nil, err
	}

	if _, err := ctrl.Finalize(ctx); err != nil {
		return nil, err
	}

	rec := publisher.Last()
	return &ComposeOutput{
		ID:          rec.ID,
		Filter:      rec.Filter,
		Caption:     rec.Caption,
		TextOverlay: rec.TextOverlay,
		Overlays:    rec.Overlays(),
		CreatedDate: rec.CreatedDate,
		ImageBytes:  len(rec.Image),
		Source:      source,
		Notices:     notices,
	}, nil
}

func applyAnnotations(ctrl *session.Controller, input ComposeInput, category annotation.HealthCategory) error {
	if input.Text != "" {
		if _, err := ctrl.SetText(input.Text); err != nil {
			return err
		}
	}
	if input.Location {
		if _, err := ctrl.AddLocation(); err != nil {
			return err
		}
	}
	if input.Weather {
		if _, err := ctrl.AddWeather(); err != nil {
			return err
		}
	}
	if input.Time {
		if _, err := ctrl.AddTime(); err != nil {
			return err
		}
	}
	if input.Health != nil {
		if _, err := ctrl.PickHealth(category, input.Health.Index); err != nil {
			return err
		}
	}
	if input.CaptionIndex != nil {
		_, err := ctrl.PickAICaption(*input.CaptionIndex)
		return err
	}
	if input.Caption != "" {
		return ctrl.SetCaption(input.Caption)
	}
	return nil
}
