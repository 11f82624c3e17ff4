// Package session coordinates one capture-edit-upload attempt: camera or
// gallery input, annotations, filter selection and the final post payload.
package session

import (
	"context"

	"github.com/hpungsan/moment/internal/annotation"
	"github.com/hpungsan/moment/internal/imaging"
)

// Mode is the top-level state of a capture session.
type Mode int

const (
	// ModeLive waits for a camera capture or gallery selection.
	ModeLive Mode = iota
	// ModeEditing shows the captured image with annotation controls.
	ModeEditing
	// ModeFiltering shows the filter carousel; annotations are hidden.
	ModeFiltering
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeEditing:
		return "editing"
	case ModeFiltering:
		return "filtering"
	}
	return "unknown"
}

// Post is the payload emitted once per successful finalize. The receiver
// assigns the id, author and avatar.
type Post struct {
	Image       []byte  `json:"image"`
	Caption     string  `json:"caption"`
	TextOverlay *string `json:"text_overlay,omitempty"`
	Location    *string `json:"location,omitempty"`
	Weather     *string `json:"weather,omitempty"`
	Time        *string `json:"time,omitempty"`
	Health      *string `json:"health,omitempty"`
	HealthIcon  *string `json:"health_icon,omitempty"`
	Filter      string  `json:"filter"`
	CreatedAt   string  `json:"created_at"` // YYYY-MM-DD
}

// PostSink receives finalized posts.
type PostSink interface {
	Emit(ctx context.Context, post Post) error
}

// PostSinkFunc adapts a function to PostSink.
type PostSinkFunc func(ctx context.Context, post Post) error

func (f PostSinkFunc) Emit(ctx context.Context, post Post) error { return f(ctx, post) }

// NoticeKind distinguishes transient toasts, persistent banners and
// confirmation prompts.
type NoticeKind string

const (
	NoticeToast   NoticeKind = "toast"
	NoticeBanner  NoticeKind = "banner"
	NoticeConfirm NoticeKind = "confirm"
)

// Notice is a fire-and-forget user feedback request.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Notifier displays notices.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Notice messages.
const (
	MsgNoImageSelected   = "no image selected"
	MsgUploadSucceeded   = "upload succeeded"
	MsgCameraUnavailable = "camera unavailable, choose a photo from the gallery"
	MsgDiscardDraft      = "discard this post?"
)

// ExitDecision is the result of an exit request.
type ExitDecision int

const (
	// ExitAllowed means the caller may navigate away.
	ExitAllowed ExitDecision = iota
	// ExitNeedsConfirmation means a draft exists; call ConfirmDiscard to proceed.
	ExitNeedsConfirmation
)

// captureSession is the state of one upload attempt. Raw is non-nil
// whenever mode is Editing or Filtering.
type captureSession struct {
	mode        Mode
	raw         *imaging.Image
	filterName  string
	annotations *annotation.State
	caption     string
}

func newCaptureSession(gen annotation.Generator) *captureSession {
	return &captureSession{
		mode:        ModeLive,
		filterName:  imaging.NormalFilter,
		annotations: annotation.New(gen),
	}
}

func (s *captureSession) draftPresent() bool {
	return s.raw != nil || s.annotations.Any() || s.caption != ""
}

// View is a read-only copy of the session for display.
type View struct {
	Mode         Mode                `json:"-"`
	ModeName     string              `json:"mode"`
	HasImage     bool                `json:"has_image"`
	Filter       string              `json:"filter"`
	Caption      string              `json:"caption,omitempty"`
	Annotations  annotation.Snapshot `json:"annotations"`
	DraftPresent bool                `json:"draft_present"`
	Finalizing   bool                `json:"finalizing"`
}
