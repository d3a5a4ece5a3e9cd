package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path"
	"strings"

	"github.com/ironsheep/easy-token-mcp/internal/export"
	"github.com/ironsheep/easy-token-mcp/internal/settings"
	"github.com/ironsheep/easy-token-mcp/internal/storage"
)

// Notification tells the host that an image was saved.
type Notification struct {
	SessionID string            `json:"session_id"`
	Category  settings.Category `json:"category"`
	File      string            `json:"file"`
	Message   string            `json:"message"`

	// Permanent asks the host to keep the message until dismissed.
	Permanent bool `json:"permanent"`
}

// Notifier receives save notifications. It may be called from any
// goroutine.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// SaveResult describes a completed save.
type SaveResult struct {
	Category settings.Category `json:"category"`
	File     string            `json:"file"`
	Path     string            `json:"path"`
	Image    string            `json:"image"`
	Bytes    int               `json:"bytes"`
}

// SaveJob tracks one asynchronous save. A nil job stands for a save that
// had nothing to export.
type SaveJob struct {
	done   chan struct{}
	result SaveResult
	err    error
}

func newSaveJob() *SaveJob {
	return &SaveJob{done: make(chan struct{})}
}

func failedJob(err error) *SaveJob {
	j := newSaveJob()
	j.finish(SaveResult{}, err)
	return j
}

func (j *SaveJob) finish(res SaveResult, err error) {
	j.result, j.err = res, err
	close(j.done)
}

// Done is closed when the save finishes. It is nil for a nil job.
func (j *SaveJob) Done() <-chan struct{} {
	if j == nil {
		return nil
	}
	return j.done
}

// Wait blocks until the save finishes or ctx is cancelled.
func (j *SaveJob) Wait(ctx context.Context) (SaveResult, error) {
	if j == nil {
		return SaveResult{}, nil
	}
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return SaveResult{}, ctx.Err()
	}
}

// SaveAvatar exports the loaded image at native resolution and uploads it
// as the actor's avatar. It returns nil when no image is loaded.
func (s *Session) SaveAvatar(ctx context.Context) *SaveJob {
	return s.save(ctx, settings.Avatar)
}

// SaveToken exports the token composite and uploads it as the token
// image. It returns nil when no image is loaded.
func (s *Session) SaveToken(ctx context.Context) *SaveJob {
	return s.save(ctx, settings.Token)
}

// SaveAll starts both saves and closes the session. The saves keep
// running after the close.
func (s *Session) SaveAll(ctx context.Context) []*SaveJob {
	avatar := s.SaveAvatar(ctx)
	token := s.SaveToken(ctx)
	s.Close()

	var jobs []*SaveJob
	for _, j := range []*SaveJob{avatar, token} {
		if j != nil {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

// exportTarget picks the format for a category from the settings.
func exportTarget(st settings.Settings, cat settings.Category) (export.Target, error) {
	t := export.TokenTarget()
	name := st.TokenFormat
	if cat == settings.Avatar {
		t = export.AvatarTarget()
		name = st.AvatarFormat
	}
	if name != "" {
		f, err := export.ParseFormat(name)
		if err != nil {
			return export.Target{}, err
		}
		t.Format = f
	}
	switch t.Format {
	case export.JPEG:
		t.Quality = st.JPEGQuality
	case export.WEBP:
		t.Quality = st.WebPQuality
	}
	return t, nil
}

func (s *Session) save(ctx context.Context, cat settings.Category) *SaveJob {
	st := s.deps.Settings.Get()
	target, err := exportTarget(st, cat)
	if err != nil {
		return failedJob(err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return failedJob(ErrSessionClosed)
	}
	img, err := export.Rasterize(s.stage, target)
	s.mu.Unlock()

	if errors.Is(err, export.ErrNoImage) {
		s.deps.Logger.Printf("editor %s: %s save skipped, no image loaded", s.id, cat)
		return nil
	}
	if err != nil {
		return failedJob(err)
	}

	job := newSaveJob()
	go func() {
		res, err := s.upload(ctx, st, cat, img, target)
		if err != nil {
			s.deps.Logger.Printf("editor %s: %s save failed: %v", s.id, cat, err)
		}
		job.finish(res, err)
	}()
	return job
}

// upload runs the asynchronous part of a save: encode, upload, update the
// entity and notify.
func (s *Session) upload(ctx context.Context, st settings.Settings, cat settings.Category, img image.Image, target export.Target) (SaveResult, error) {
	res := <-export.EncodeAsync(ctx, img, target)
	if res.Err != nil {
		return SaveResult{}, res.Err
	}

	source := st.Source
	bucket := st.Bucket(source)
	dir := st.UploadPath(source, s.target.Actor.Type, cat)
	name := FileName(s.target, cat, target.Format.Ext())

	s.ensureDirectory(ctx, string(source), dir, bucket)

	up, err := s.deps.Uploader.Upload(ctx, storage.UploadRequest{
		Source: string(source),
		Path:   dir,
		Name:   name,
		Data:   res.Encoded.Data,
		Bucket: bucket,
	})
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	if up.Status != storage.StatusSuccess {
		return SaveResult{}, fmt.Errorf("upload of %s returned status %q", name, up.Status)
	}

	imgRef := CacheBust(up.Path, s.deps.Now())
	if cat == settings.Avatar {
		err = s.deps.Entities.UpdateActorImage(s.target.Actor.ID, imgRef)
	} else {
		err = s.updateTokenImages(imgRef)
	}
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to update %s image: %w", cat, err)
	}

	file := path.Base(up.Path)
	s.deps.Notifier.Notify(Notification{
		SessionID: s.id,
		Category:  cat,
		File:      file,
		Message:   fmt.Sprintf("%s saved as %s", strings.ToUpper(string(cat[:1]))+string(cat[1:]), file),
		Permanent: true,
	})

	return SaveResult{
		Category: cat,
		File:     file,
		Path:     up.Path,
		Image:    imgRef,
		Bytes:    len(res.Encoded.Data),
	}, nil
}

// updateTokenImages points the token image at img. An unlinked token is
// updated alone; otherwise the prototype token and every linked token
// are. Failures on individual linked tokens are logged.
func (s *Session) updateTokenImages(img string) error {
	if s.target.IsToken() {
		return s.deps.Entities.UpdateTokenImage(*s.target.Token, img)
	}

	actorID := s.target.Actor.ID
	if err := s.deps.Entities.UpdatePrototypeTokenImage(actorID, img); err != nil {
		return err
	}
	for _, ref := range s.deps.Entities.LinkedTokens(actorID) {
		if err := s.deps.Entities.UpdateTokenImage(ref, img); err != nil {
			s.deps.Logger.Printf("editor %s: failed to update token %s: %v", s.id, ref, err)
		}
	}
	return nil
}

// ensureDirectory creates every prefix of dir one level at a time.
// Errors are ignored: most mean the level already exists and any other
// failure surfaces on upload.
func (s *Session) ensureDirectory(ctx context.Context, source, dir, bucket string) {
	var current string
	for _, part := range strings.Split(dir, "/") {
		if part == "" {
			continue
		}
		if current == "" {
			current = part
		} else {
			current += "/" + part
		}
		if err := s.deps.Uploader.CreateDirectory(ctx, source, current, bucket); err != nil && !errors.Is(err, storage.ErrExist) {
			s.deps.Logger.Printf("editor %s: create directory %s: %v", s.id, current, err)
		}
	}
}
