package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/moment/internal/annotation"
	"github.com/hpungsan/moment/internal/camera"
	"github.com/hpungsan/moment/internal/catalog"
	"github.com/hpungsan/moment/internal/errors"
	"github.com/hpungsan/moment/internal/imaging"
	"github.com/hpungsan/moment/internal/viewport"
)

// Options wires a Controller to its collaborators. Only Sink is required
// for posts to go anywhere; everything else has a default.
type Options struct {
	Camera            *camera.Manager // nil means gallery only
	Pipeline          *imaging.Pipeline
	Catalog           *catalog.Catalog
	Sink              PostSink
	Notifier          Notifier
	Generator         annotation.Generator
	KeyboardThreshold float64
	Pinner            viewport.Pinner
	Clock             func() time.Time
	Logger            *zap.Logger
}

// Controller is the capture/edit/upload state machine. Every event is
// applied atomically; rejected events leave the session unchanged.
type Controller struct {
	mu sync.Mutex

	camera   *camera.Manager
	pipeline *imaging.Pipeline
	catalog  *catalog.Catalog
	sink     PostSink
	notifier Notifier
	gen      annotation.Generator
	clock    func() time.Time
	logger   *zap.Logger
	keyboard *viewport.Adapter

	session    *captureSession
	prevFilter string
	finalizing bool
	cameraErr  error
}

// New creates a controller in Live mode.
func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Pipeline == nil {
		opts.Pipeline = imaging.NewPipeline(imaging.DefaultQuality, opts.Logger)
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Sink == nil {
		opts.Sink = PostSinkFunc(func(context.Context, Post) error { return nil })
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(Notice) {})
	}
	if opts.Generator.Location == "" && opts.Generator.Weather == "" {
		clock := opts.Generator.Clock
		opts.Generator = annotation.DefaultGenerator()
		if clock != nil {
			opts.Generator.Clock = clock
		}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Controller{
		camera:   opts.Camera,
		pipeline: opts.Pipeline,
		catalog:  opts.Catalog,
		sink:     opts.Sink,
		notifier: opts.Notifier,
		gen:      opts.Generator,
		clock:    opts.Clock,
		logger:   opts.Logger,
		keyboard: viewport.NewAdapter(opts.KeyboardThreshold, opts.Pinner),
		session:  newCaptureSession(opts.Generator),
	}
}

// guard rejects events while a finalize is in flight or outside the allowed modes.
// Callers must hold c.mu.
func (c *Controller) guard(event string, allowed ...Mode) error {
	if c.finalizing {
		return errors.NewBusy()
	}
	for _, m := range allowed {
		if c.session.mode == m {
			return nil
		}
	}
	return errors.NewInvalidTransition(c.session.mode.String(), event)
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.mode
}

// View returns a copy of the session state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	return View{
		Mode:         s.mode,
		ModeName:     s.mode.String(),
		HasImage:     s.raw != nil,
		Filter:       s.filterName,
		Caption:      s.caption,
		Annotations:  s.annotations.Snapshot(),
		DraftPresent: s.draftPresent(),
		Finalizing:   c.finalizing,
	}
}

// Image returns the clean captured image, or nil in Live mode.
func (c *Controller) Image() *imaging.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.raw
}

// DraftPresent reports whether exiting would lose work.
func (c *Controller) DraftPresent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.draftPresent()
}

// CameraError returns the device error recorded by the last camera
// operation, or nil when the camera is usable.
func (c *Controller) CameraError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cameraErr
}

// --- Live ---

// StartCamera opens the camera with the given facing. Device errors are
// handled here: they are recorded (see CameraError), shown as a banner and
// the session stays in Live with gallery selection available.
func (c *Controller) StartCamera(ctx context.Context, facing camera.Facing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("start camera", ModeLive); err != nil {
		return err
	}
	if c.camera == nil {
		c.cameraUnavailableLocked(errors.NewNoDevice())
		return nil
	}
	if _, err := c.camera.Acquire(ctx, facing); err != nil {
		c.cameraUnavailableLocked(err)
		return nil
	}
	c.cameraErr = nil
	return nil
}

// ToggleFacing switches between front and back cameras.
func (c *Controller) ToggleFacing(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("toggle camera", ModeLive); err != nil {
		return err
	}
	if c.camera == nil || c.camera.Current() == nil {
		return errors.NewInvalidRequest("camera is not running")
	}
	if _, err := c.camera.Toggle(ctx); err != nil {
		c.cameraUnavailableLocked(err)
	}
	return nil
}

func (c *Controller) cameraUnavailableLocked(err error) {
	c.cameraErr = err
	c.logger.Info("camera unavailable, gallery only", zap.Error(err))
	c.notifier.Notify(Notice{Kind: NoticeBanner, Message: MsgCameraUnavailable})
}

// Capture grabs a frame from the running camera and enters Editing.
func (c *Controller) Capture(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("capture", ModeLive); err != nil {
		return err
	}
	var stream camera.Stream
	if c.camera != nil {
		stream = c.camera.Current()
	}
	if stream == nil {
		return errors.NewInvalidRequest("camera is not running")
	}

	frame, err := stream.Snapshot(ctx)
	if err != nil {
		return errors.NewInvalidImage(err)
	}
	img, err := c.pipeline.NormalizeImage(ctx, frame)
	if err != nil {
		return errors.NewInternal(err)
	}
	c.enterEditingLocked(img)
	return nil
}

// SelectFromGallery imports an encoded image and enters Editing.
func (c *Controller) SelectFromGallery(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("select from gallery", ModeLive); err != nil {
		return err
	}
	img, err := c.pipeline.Normalize(ctx, data)
	if err != nil {
		return errors.NewInvalidImage(err)
	}
	c.enterEditingLocked(img)
	return nil
}

func (c *Controller) enterEditingLocked(img *imaging.Image) {
	c.session.raw = img
	c.session.mode = ModeEditing
	if c.camera != nil {
		c.camera.Release()
	}
}

// --- Filtering ---

// OpenFilters shows the filter carousel and remembers the active filter
// so CancelFilter can restore it.
func (c *Controller) OpenFilters() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("open filters", ModeEditing); err != nil {
		return err
	}
	c.prevFilter = c.session.filterName
	c.session.mode = ModeFiltering
	c.keyboard.SetFocused(false)
	return nil
}

// PreviewFilter selects a filter in the carousel. Unknown names select Normal.
func (c *Controller) PreviewFilter(name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("select filter", ModeFiltering); err != nil {
		return "", err
	}
	c.session.filterName = c.catalog.Resolve(name).Name
	return c.session.filterName, nil
}

// PreviewImage renders the clean source with the selected filter for display.
func (c *Controller) PreviewImage(ctx context.Context) (*imaging.Image, error) {
	c.mu.Lock()
	if err := c.guard("preview", ModeEditing, ModeFiltering); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	raw := c.session.raw
	f := c.catalog.Resolve(c.session.filterName)
	c.mu.Unlock()

	return c.pipeline.Apply(ctx, raw, f), nil
}

// ConfirmFilter keeps the selected filter and returns to Editing.
func (c *Controller) ConfirmFilter() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("confirm filter", ModeFiltering); err != nil {
		return err
	}
	c.session.mode = ModeEditing
	return nil
}

// CancelFilter restores the filter active before OpenFilters and returns to Editing.
func (c *Controller) CancelFilter() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("cancel filter", ModeFiltering); err != nil {
		return err
	}
	c.session.filterName = c.prevFilter
	c.session.mode = ModeEditing
	return nil
}

// --- Editing: annotations ---

func (c *Controller) edit(event string, fn func(s *captureSession)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(event, ModeEditing); err != nil {
		return err
	}
	fn(c.session)
	return nil
}

// SetText stores the text overlay, capped, and returns the stored value.
func (c *Controller) SetText(text string) (string, error) {
	var stored string
	err := c.edit("edit text", func(s *captureSession) { stored = s.annotations.SetText(text) })
	return stored, err
}

func (c *Controller) AddLocation() (string, error) {
	var v string
	err := c.edit("add location", func(s *captureSession) { v = s.annotations.AddLocation() })
	return v, err
}

func (c *Controller) ClearLocation() error {
	return c.edit("clear location", func(s *captureSession) { s.annotations.ClearLocation() })
}

func (c *Controller) AddWeather() (string, error) {
	var v string
	err := c.edit("add weather", func(s *captureSession) { v = s.annotations.AddWeather() })
	return v, err
}

func (c *Controller) ClearWeather() error {
	return c.edit("clear weather", func(s *captureSession) { s.annotations.ClearWeather() })
}

func (c *Controller) AddTime() (string, error) {
	var v string
	err := c.edit("add time", func(s *captureSession) { v = s.annotations.AddTime() })
	return v, err
}

func (c *Controller) ClearTime() error {
	return c.edit("clear time", func(s *captureSession) { s.annotations.ClearTime() })
}

// PickHealth selects a health record from the catalog.
func (c *Controller) PickHealth(category annotation.HealthCategory, index int) (annotation.HealthRecord, error) {
	rec, err := c.catalog.HealthRecord(category, index)
	if err != nil {
		return annotation.HealthRecord{}, errors.NewInvalidRequest(err.Error())
	}
	if err := c.edit("pick health", func(s *captureSession) { s.annotations.SetHealth(rec) }); err != nil {
		return annotation.HealthRecord{}, err
	}
	return rec, nil
}

func (c *Controller) ClearHealth() error {
	return c.edit("clear health", func(s *captureSession) { s.annotations.ClearHealth() })
}

// SetCaption sets the post caption.
func (c *Controller) SetCaption(caption string) error {
	return c.edit("edit caption", func(s *captureSession) { s.caption = caption })
}

// PickAICaption sets the caption from the static suggestion list.
func (c *Controller) PickAICaption(index int) (string, error) {
	caption, err := c.catalog.Caption(index)
	if err != nil {
		return "", errors.NewInvalidRequest(err.Error())
	}
	if err := c.SetCaption(caption); err != nil {
		return "", err
	}
	return caption, nil
}

// FocusText records text input focus. Focus is only possible while Editing;
// blurring is always accepted.
func (c *Controller) FocusText(focused bool) (viewport.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if focused {
		if err := c.guard("focus text", ModeEditing); err != nil {
			return c.keyboard.State(), err
		}
	}
	return c.keyboard.SetFocused(focused), nil
}

// ObserveViewport feeds a visual viewport height to the keyboard adapter.
func (c *Controller) ObserveViewport(height float64) viewport.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyboard.Observe(height)
}

// --- Finalize and exit ---

// Finalize applies the selected filter to the clean source, emits the post
// and resets to a fresh Live session. Without an image it posts a notice and
// changes nothing. A sink error also leaves the session untouched.
func (c *Controller) Finalize(ctx context.Context) (*Post, error) {
	c.mu.Lock()
	if c.finalizing {
		c.mu.Unlock()
		return nil, errors.NewBusy()
	}
	if c.session.raw == nil {
		c.mu.Unlock()
		c.notifier.Notify(Notice{Kind: NoticeToast, Message: MsgNoImageSelected})
		return nil, errors.NewNoImageSelected()
	}
	if err := c.guard("finalize", ModeEditing); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.finalizing = true
	raw := c.session.raw
	filter := c.catalog.Resolve(c.session.filterName)
	snap := c.session.annotations.Snapshot()
	caption := c.session.caption
	c.mu.Unlock()

	out := c.pipeline.Apply(ctx, raw, filter)
	post := Post{
		Image:       out.Data,
		Caption:     caption,
		TextOverlay: snap.TextOverlay,
		Location:    snap.Location,
		Weather:     snap.Weather,
		Time:        snap.Time,
		Health:      snap.Health,
		HealthIcon:  snap.HealthIcon,
		Filter:      filter.Name,
		CreatedAt:   c.clock().Format("2006-01-02"),
	}
	emitErr := c.sink.Emit(ctx, post)

	c.mu.Lock()
	c.finalizing = false
	if emitErr != nil {
		c.mu.Unlock()
		c.logger.Warn("post emit failed", zap.Error(emitErr))
		return nil, emitErr
	}
	c.resetLocked()
	c.mu.Unlock()

	c.logger.Debug("post finalized",
		zap.String("filter", filter.Name),
		zap.Int("bytes", len(post.Image)))
	c.notifier.Notify(Notice{Kind: NoticeToast, Message: MsgUploadSucceeded})
	return &post, nil
}

// RequestExit asks to leave the screen. With a draft present a confirmation
// notice is posted and nothing changes until ConfirmDiscard.
func (c *Controller) RequestExit() (ExitDecision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("exit", ModeLive, ModeEditing); err != nil {
		return ExitAllowed, err
	}
	if c.session.draftPresent() {
		c.notifier.Notify(Notice{Kind: NoticeConfirm, Message: MsgDiscardDraft})
		return ExitNeedsConfirmation, nil
	}
	c.releaseCameraLocked()
	return ExitAllowed, nil
}

// ConfirmDiscard abandons the draft, releases the camera and resets the session.
func (c *Controller) ConfirmDiscard() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalizing {
		return errors.NewBusy()
	}
	c.resetLocked()
	return nil
}

// Close releases the camera when the screen unmounts.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseCameraLocked()
}

func (c *Controller) resetLocked() {
	c.releaseCameraLocked()
	c.session = newCaptureSession(c.gen)
	c.prevFilter = ""
	c.keyboard.SetFocused(false)
}

func (c *Controller) releaseCameraLocked() {
	if c.camera != nil {
		c.camera.Release()
	}
}
