package editor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/ironsheep/easy-token-mcp/internal/assets"
	"github.com/ironsheep/easy-token-mcp/internal/entity"
	"github.com/ironsheep/easy-token-mcp/internal/settings"
	"github.com/ironsheep/easy-token-mcp/internal/storage"
	"github.com/ironsheep/easy-token-mcp/internal/throttle"
	"github.com/ironsheep/easy-token-mcp/internal/viewport"
)

var fixedNow = time.UnixMilli(1700000000000)

// createInMemoryImage creates a solid image of the given colour.
func createInMemoryImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

type staticSettings struct {
	s settings.Settings
}

func (s staticSettings) Get() settings.Settings { return s.s }

type uploadCall struct {
	req storage.UploadRequest
}

// fakeUploader records calls. Directories listed in existing report
// storage.ErrExist.
type fakeUploader struct {
	mu       sync.Mutex
	dirs     []string
	uploads  []uploadCall
	existing map[string]bool

	// path overrides the returned path when set.
	path   string
	status string
	err    error
}

func (u *fakeUploader) CreateDirectory(ctx context.Context, source, dir, bucket string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dirs = append(u.dirs, dir)
	if u.existing[dir] {
		return storage.ErrExist
	}
	return nil
}

func (u *fakeUploader) Upload(ctx context.Context, req storage.UploadRequest) (*storage.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads = append(u.uploads, uploadCall{req: req})
	if u.err != nil {
		return nil, u.err
	}
	status := u.status
	if status == "" {
		status = storage.StatusSuccess
	}
	p := u.path
	if p == "" {
		p = req.Path + "/" + req.Name
	}
	return &storage.UploadResult{Status: status, Path: p}, nil
}

func (u *fakeUploader) calls() ([]string, []uploadCall) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.dirs...), append([]uploadCall(nil), u.uploads...)
}

type notifications struct {
	mu   sync.Mutex
	list []Notification
}

func (n *notifications) Notify(x Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, x)
}

func (n *notifications) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.list...)
}

// manualClock holds deferred calls until fire is called.
type manualClock struct {
	mu    sync.Mutex
	funcs []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) throttle.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{f: f}
	c.funcs = append(c.funcs, t)
	return t
}

func (c *manualClock) fire() {
	c.mu.Lock()
	funcs := c.funcs
	c.funcs = nil
	c.mu.Unlock()
	for _, t := range funcs {
		if !t.stopped {
			t.f()
		}
	}
}

type fixture struct {
	registry *Registry
	entities *entity.Store
	uploader *fakeUploader
	notes    *notifications
	clock    *manualClock
	settings settings.Settings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ents := entity.NewStore(
		[]entity.Actor{
			{ID: "a1", Name: "Goblin", Type: "npc", Img: "worlds/w1/goblin.png?123"},
			{ID: "a2", Name: "Hero", Type: "character"},
		},
		[]entity.Scene{
			{ID: "s1", Tokens: []entity.Token{
				{ID: "t1", Name: "Goblin", ActorID: "a1", ActorLink: true},
				{ID: "t2", Name: "Goblin Archer", ActorID: "a1"},
			}},
			{ID: "s2", Tokens: []entity.Token{
				{ID: "t3", Name: "Goblin", ActorID: "a1", ActorLink: true},
			}},
		},
	)

	st := settings.Defaults()
	st.World = "w1"

	files := fstest.MapFS{
		"worlds/w1/goblin.png": &fstest.MapFile{Data: encodePNG(t, createInMemoryImage(120, 80, color.RGBA{0, 255, 0, 255}))},
	}

	f := &fixture{
		entities: ents,
		uploader: &fakeUploader{existing: map[string]bool{"worlds": true}},
		notes:    &notifications{},
		clock:    &manualClock{},
		settings: st,
	}
	f.registry = NewRegistry(Deps{
		Entities: ents,
		Settings: staticSettings{s: st},
		Uploader: f.uploader,
		Assets:   assets.NewResolver(nil),
		Textures: viewport.NewTextureLoader(files),
		Notifier: f.notes,
		Now:      func() time.Time { return fixedNow },
		After:    f.clock.AfterFunc,
		Logger:   log.New(io.Discard, "", 0),
	})
	return f
}

func (f *fixture) open(t *testing.T, ref string) *Session {
	t.Helper()
	s, focused, err := f.registry.Open(context.Background(), ref)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", ref, err)
	}
	if focused {
		t.Fatalf("Open(%s) focused an existing session", ref)
	}
	return s
}

// loadImage loads a solid w×h image and waits for it.
func loadImage(t *testing.T, s *Session, w, h int) {
	t.Helper()
	data := encodePNG(t, createInMemoryImage(w, h, color.RGBA{255, 0, 0, 255}))
	if err := <-s.LoadImage(context.Background(), Source{Data: data, Name: "drop.png"}); err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
}

func wait(t *testing.T, j *SaveJob) SaveResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := j.Wait(ctx)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	return res
}
