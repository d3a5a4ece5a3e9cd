// Package storage is the upload service the editor saves exported images
// to. Disk keeps files under a root directory; S3 uploads are emulated
// beneath a per-bucket subdirectory so both sources behave the same way.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// StatusSuccess is the status of a completed upload.
const StatusSuccess = "success"

// s3Dir holds emulated buckets under the root.
const s3Dir = ".s3"

var (
	// ErrExist is returned by CreateDirectory for a directory that already
	// exists.
	ErrExist = errors.New("storage: directory already exists")

	// ErrInvalidName is returned for file names containing a separator.
	ErrInvalidName = errors.New("storage: invalid file name")
)

// UploadRequest describes one file to store.
type UploadRequest struct {
	Source string
	Path   string
	Name   string
	Data   []byte
	Bucket string
}

// UploadResult reports where a file was stored.
type UploadResult struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

// Uploader is the interface the editor saves through.
type Uploader interface {
	CreateDirectory(ctx context.Context, source, dir, bucket string) error
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// Disk stores uploads in a directory tree.
type Disk struct {
	root string
}

// NewDisk creates a disk store rooted at root.
func NewDisk(root string) *Disk {
	return &Disk{root: filepath.Clean(root)}
}

// Root returns the directory uploads are stored under.
func (d *Disk) Root() string { return d.root }

// FS exposes the data source for reading stored files back.
func (d *Disk) FS() fs.FS { return os.DirFS(d.root) }

// CreateDirectory creates one directory level. It fails with ErrExist if
// the directory is already there and with the underlying error if its
// parent is missing. S3 buckets are created on first use.
func (d *Disk) CreateDirectory(ctx context.Context, source, dir, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := d.fullPath(source, bucket, dir)
	if err != nil {
		return err
	}
	if source == "s3" {
		if err := os.MkdirAll(filepath.Join(d.root, s3Dir, bucket), 0o755); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	if err := os.Mkdir(full, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExist, dir)
		}
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// Upload writes req.Data to req.Path/req.Name, replacing any existing
// file. The directory must exist.
func (d *Disk) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Name == "" || strings.ContainsAny(req.Name, `/\`) || req.Name == "." || req.Name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, req.Name)
	}

	rel := cleanRel(path.Join(req.Path, req.Name))
	full, err := d.fullPath(req.Source, req.Bucket, rel)
	if err != nil {
		return nil, err
	}

	tmp := full + ".upload"
	if err := os.WriteFile(tmp, req.Data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", rel, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to upload %s: %w", rel, err)
	}
	return &UploadResult{Status: StatusSuccess, Path: rel}, nil
}

// fullPath maps a storage path onto the disk without letting it escape
// the root.
func (d *Disk) fullPath(source, bucket, p string) (string, error) {
	rel := cleanRel(p)
	switch source {
	case "", "data":
		return filepath.Join(d.root, filepath.FromSlash(rel)), nil
	case "s3":
		if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
			return "", fmt.Errorf("invalid s3 bucket %q", bucket)
		}
		return filepath.Join(d.root, s3Dir, bucket, filepath.FromSlash(rel)), nil
	default:
		return "", fmt.Errorf("unknown storage source %q", source)
	}
}

// cleanRel normalizes p to a relative slash path with no parent
// references.
func cleanRel(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}
