// Package editor runs token editor sessions.
//
// A Session owns one Stage for one target actor or unlinked token. Commands
// mutate the stage under the session lock; decoding, encoding and uploading
// run on their own goroutines and take the lock only to read or apply
// results. A Registry keeps at most one session per target.
package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/ironsheep/easy-token-mcp/internal/assets"
	"github.com/ironsheep/easy-token-mcp/internal/entity"
	"github.com/ironsheep/easy-token-mcp/internal/export"
	"github.com/ironsheep/easy-token-mcp/internal/interact"
	"github.com/ironsheep/easy-token-mcp/internal/settings"
	"github.com/ironsheep/easy-token-mcp/internal/storage"
	"github.com/ironsheep/easy-token-mcp/internal/throttle"
	"github.com/ironsheep/easy-token-mcp/internal/vec"
	"github.com/ironsheep/easy-token-mcp/internal/viewport"
)

// ErrSessionClosed is returned by commands on a closed session.
var ErrSessionClosed = errors.New("editor session is closed")

// Entities is the part of the entity store a session reads and updates.
type Entities interface {
	Resolve(ref string) (entity.Target, error)
	Actor(id string) (entity.Actor, error)
	UpdateActorImage(actorID, img string) error
	UpdatePrototypeTokenImage(actorID, img string) error
	UpdateTokenImage(ref entity.TokenRef, img string) error
	LinkedTokens(actorID string) []entity.TokenRef
}

// Settings supplies the current upload configuration.
type Settings interface {
	Get() settings.Settings
}

// Assets resolves border, background and placeholder textures.
type Assets interface {
	Texture(name string) (*viewport.Texture, error)
}

// Textures loads user images.
type Textures interface {
	Load(ctx context.Context, src string) (*viewport.Texture, error)
	FromBytes(data []byte, name string) (*viewport.Texture, error)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Entities Entities
	Settings Settings
	Uploader storage.Uploader
	Assets   Assets
	Textures Textures
	Notifier Notifier

	// Layout defaults to viewport.DefaultLayout.
	Layout *viewport.Layout

	// Now defaults to time.Now. It stamps cache-busted image paths.
	Now func() time.Time

	// After schedules deferred colour changes. Defaults to the real clock.
	After throttle.AfterFunc

	// Logger defaults to the standard logger.
	Logger *log.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Layout == nil {
		l := viewport.DefaultLayout()
		d.Layout = &l
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.After == nil {
		d.After = throttle.RealClock
	}
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Notifier == nil {
		d.Notifier = NotifierFunc(func(Notification) {})
	}
	return d
}

// Source is an image to load: a URL, data URI or storage path in Ref, or
// raw file bytes in Data.
type Source struct {
	Ref  string
	Data []byte
	Name string
}

// Session is one open editor.
type Session struct {
	id     string
	target entity.Target
	deps   Deps

	mu       sync.Mutex
	stage    *viewport.Stage
	ctrl     *interact.Controller
	border   string
	loadSeq  uint64
	closed   bool
	onClosed func(*Session)

	ctx    context.Context
	cancel context.CancelFunc

	borderTint     *throttle.Deferred[uint32]
	backgroundTint *throttle.Deferred[uint32]
}

func newSession(id string, target entity.Target, deps Deps) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	stage := viewport.NewStage(*deps.Layout)
	s := &Session{
		id:     id,
		target: target,
		deps:   deps,
		stage:  stage,
		ctrl:   interact.NewController(stage),
		ctx:    ctx,
		cancel: cancel,
	}
	s.borderTint = throttle.NewWithClock(s.applyBorderTint, throttle.DefaultDelay, deps.After)
	s.backgroundTint = throttle.NewWithClock(s.applyBackgroundTint, throttle.DefaultDelay, deps.After)

	if err := s.applyDefaults(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// applyDefaults sets the default border, the background and the drop
// placeholder.
func (s *Session) applyDefaults() error {
	border, err := s.deps.Assets.Texture(assets.DefaultBorder)
	if err != nil {
		return fmt.Errorf("failed to load default border: %w", err)
	}
	background, err := s.deps.Assets.Texture(assets.Background)
	if err != nil {
		return fmt.Errorf("failed to load background: %w", err)
	}
	placeholder, err := s.deps.Assets.Texture(assets.Placeholder)
	if err != nil {
		return fmt.Errorf("failed to load placeholder: %w", err)
	}

	s.stage.SetBorder(border)
	s.stage.SetBackground(background)
	s.stage.SetPlaceholder(placeholder)
	s.border = assets.DefaultBorder
	return nil
}

// ID returns the deterministic session identity.
func (s *Session) ID() string { return s.id }

// Target returns the edited actor or token as it was when the session
// opened.
func (s *Session) Target() entity.Target { return s.target }

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close discards the session. Pending colour changes are dropped;
// in-flight saves run to completion. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.ctrl.Cancel()
	onClosed := s.onClosed
	s.mu.Unlock()

	s.borderTint.Stop()
	s.backgroundTint.Stop()
	s.cancel()
	if onClosed != nil {
		onClosed(s)
	}
}

// LoadImage decodes src off the session lock and shows it in both views.
// The channel receives nil on success or the decode error, which leaves
// the previous image in place. When loads overlap the last one started
// wins.
func (s *Session) LoadImage(ctx context.Context, src Source) <-chan error {
	out := make(chan error, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		out <- ErrSessionClosed
		close(out)
		return out
	}
	s.loadSeq++
	seq := s.loadSeq
	s.mu.Unlock()

	go func() {
		defer close(out)

		tex, err := s.decode(ctx, src)
		if err != nil {
			s.deps.Logger.Printf("editor %s: image load failed: %v", s.id, err)
			out <- err
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case s.closed:
			out <- ErrSessionClosed
		case seq != s.loadSeq:
			out <- nil
		default:
			s.ctrl.Cancel()
			s.stage.SetTexture(tex)
			out <- nil
		}
	}()
	return out
}

func (s *Session) decode(ctx context.Context, src Source) (*viewport.Texture, error) {
	if src.Data != nil {
		name := src.Name
		if name == "" {
			name = "upload"
		}
		return s.deps.Textures.FromBytes(src.Data, name)
	}
	if src.Ref == "" {
		return nil, fmt.Errorf("no image source given")
	}
	return s.deps.Textures.Load(ctx, src.Ref)
}

// LoadAvatar loads the target's current avatar image.
func (s *Session) LoadAvatar(ctx context.Context) <-chan error {
	a, err := s.deps.Entities.Actor(s.target.Actor.ID)
	if err != nil {
		out := make(chan error, 1)
		out <- err
		close(out)
		return out
	}
	if a.Img == "" {
		out := make(chan error, 1)
		out <- fmt.Errorf("actor %s has no avatar image", a.ID)
		close(out)
		return out
	}
	return s.LoadImage(ctx, Source{Ref: a.Img})
}

// PointerDown starts a drag if p hits the editor image.
func (s *Session) PointerDown(p vec.Vec2) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSessionClosed
	}
	return s.ctrl.PointerDown(p), nil
}

// PointerMove drags the images while a drag is in progress.
func (s *Session) PointerMove(p vec.Vec2) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.ctrl.PointerMove(p)
	return nil
}

// PointerUp ends a drag.
func (s *Session) PointerUp(p vec.Vec2) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.ctrl.PointerUp(p)
	return nil
}

// Wheel zooms one step at p and returns the new zoom.
func (s *Session) Wheel(p vec.Vec2, deltaY float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	return s.ctrl.Wheel(p, deltaY), nil
}

// SetZoom zooms to value around the last pointer position.
func (s *Session) SetZoom(value float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	return s.ctrl.SetZoom(value), nil
}

// SetBorder swaps the border asset on both views.
func (s *Session) SetBorder(name string) error {
	tex, err := s.deps.Assets.Texture(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.stage.SetBorder(tex)
	s.border = assets.Name(name)
	return nil
}

// BorderColor schedules a border tint change from a colour input value.
func (s *Session) BorderColor(hex string) error {
	return s.scheduleTint(s.borderTint, hex)
}

// BackgroundColor schedules a background tint change.
func (s *Session) BackgroundColor(hex string) error {
	return s.scheduleTint(s.backgroundTint, hex)
}

func (s *Session) scheduleTint(d *throttle.Deferred[uint32], hex string) error {
	tint, err := viewport.ParseTint(hex)
	if err != nil {
		return err
	}
	if s.Closed() {
		return ErrSessionClosed
	}
	d.Call(tint)
	return nil
}

func (s *Session) applyBorderTint(c uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.stage.SetBorderTint(c)
	}
}

func (s *Session) applyBackgroundTint(c uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.stage.SetBackgroundTint(c)
	}
}

// ImageInfo describes the loaded image.
type ImageInfo struct {
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// State is a snapshot of the session for hosts.
type State struct {
	ID              string             `json:"id"`
	Target          entity.Target      `json:"target"`
	Interactive     bool               `json:"interactive"`
	Dragging        bool               `json:"dragging"`
	Zoom            float64            `json:"zoom"`
	Editor          viewport.Transform `json:"editor"`
	Preview         viewport.Transform `json:"preview"`
	Border          string             `json:"border"`
	BorderColor     string             `json:"border_color"`
	BackgroundColor string             `json:"background_color"`
	ColorPending    bool               `json:"color_pending"`
	Image           *ImageInfo         `json:"image,omitempty"`
	Layout          viewport.Layout    `json:"layout"`
}

// State returns a snapshot of the session.
func (s *Session) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, ErrSessionClosed
	}

	st := State{
		ID:              s.id,
		Target:          s.target,
		Interactive:     s.stage.Interactive(),
		Dragging:        s.ctrl.Dragging(),
		Zoom:            s.stage.Zoom(),
		Editor:          s.stage.EditorImage().Transform,
		Preview:         s.stage.PreviewImage().Transform,
		Border:          s.border,
		BorderColor:     viewport.TintHex(s.stage.BorderTint()),
		BackgroundColor: viewport.TintHex(s.stage.BackgroundTint()),
		ColorPending:    s.borderTint.Pending() || s.backgroundTint.Pending(),
		Layout:          s.stage.Layout(),
	}
	if tex := s.stage.Texture(); tex != nil {
		st.Image = &ImageInfo{Source: tex.Source(), Width: tex.Width(), Height: tex.Height()}
	}
	return st, nil
}

// View names a renderable surface.
type View string

const (
	// ViewStage is the whole editor with its preview.
	ViewStage View = "stage"

	// ViewToken is the token composite at token size.
	ViewToken View = "token"
)

// Render rasterizes a view and encodes it as PNG. A positive grid draws a
// coordinate grid with that spacing over the result.
func (s *Session) Render(view View, grid int) (*export.Encoded, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}

	var img *image.RGBA
	switch view {
	case ViewStage, "":
		img = s.stage.RenderStage()
	case ViewToken:
		img = s.stage.RenderToken()
	default:
		s.mu.Unlock()
		return nil, fmt.Errorf("unknown view %q (use stage or token)", view)
	}
	s.mu.Unlock()

	viewport.DrawGrid(img, grid, viewport.GridColor)
	return export.Encode(img, export.Target{Format: export.PNG})
}
