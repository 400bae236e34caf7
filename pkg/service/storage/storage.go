package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/utils/logging"
	"github.com/secmon-lab/riskmatrix/pkg/utils/safe"
)

const gcsScheme = "gs://"

// ObjectWriter opens a writer for a bucket object
type ObjectWriter interface {
	NewWriter(ctx context.Context, bucket, object string) io.WriteCloser
}

// Saver stores exported files on the local filesystem or in Cloud Storage
type Saver struct {
	objects ObjectWriter
}

// Option configures Saver
type Option func(*Saver)

// WithObjectWriter sets the Cloud Storage backend used for gs:// outputs
func WithObjectWriter(w ObjectWriter) Option {
	return func(s *Saver) {
		s.objects = w
	}
}

func New(opts ...Option) *Saver {
	s := &Saver{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is where an export ended up
type Location struct {
	Bucket string
	Path   string
}

func (l Location) String() string {
	if l.Bucket != "" {
		return gcsScheme + l.Bucket + "/" + l.Path
	}
	return l.Path
}

// Resolve decides where filename goes for output:
//   - empty: filename in the working directory
//   - gs://bucket[/prefix]: an object; a prefix ending in .csv is the object name itself
//   - an existing directory, or a path ending with a separator: filename inside it
//   - anything else: the file path itself
func Resolve(output, filename string) (Location, error) {
	if output == "" {
		return Location{Path: filename}, nil
	}

	if rest, ok := strings.CutPrefix(output, gcsScheme); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Location{}, goerr.New("bucket name is required", goerr.V("output", output))
		}
		object := filename
		switch {
		case strings.HasSuffix(prefix, ".csv"):
			object = prefix
		case prefix != "":
			object = path.Join(prefix, filename)
		}
		return Location{Bucket: bucket, Path: object}, nil
	}

	if strings.HasSuffix(output, string(filepath.Separator)) {
		return Location{Path: filepath.Join(output, filename)}, nil
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return Location{Path: filepath.Join(output, filename)}, nil
	}
	return Location{Path: output}, nil
}

// Save writes data for filename according to output and returns the final location
func (s *Saver) Save(ctx context.Context, output, filename string, data []byte) (Location, error) {
	loc, err := Resolve(output, filename)
	if err != nil {
		return Location{}, err
	}

	if loc.Bucket != "" {
		if err := s.saveObject(ctx, loc, data); err != nil {
			return Location{}, err
		}
	} else {
		if err := saveFile(loc.Path, data); err != nil {
			return Location{}, err
		}
	}

	logging.From(ctx).Info("export saved", "location", loc.String(), "bytes", len(data))
	return loc, nil
}

func (s *Saver) saveObject(ctx context.Context, loc Location, data []byte) error {
	if s.objects == nil {
		return goerr.New("Cloud Storage is not configured", goerr.V("location", loc.String()))
	}

	w := s.objects.NewWriter(ctx, loc.Bucket, loc.Path)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		safe.Close(ctx, w)
		return goerr.Wrap(err, "failed to upload export", goerr.V("location", loc.String()))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize upload", goerr.V("location", loc.String()))
	}
	return nil
}

func saveFile(p string, data []byte) error {
	if dir := filepath.Dir(p); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return goerr.Wrap(err, "failed to create export directory", goerr.V("dir", dir))
		}
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return goerr.Wrap(err, "failed to write export", goerr.V("path", p))
	}
	return nil
}

// GCS writes objects through a Cloud Storage client
type GCS struct {
	client *storage.Client
}

// NewGCS creates a Cloud Storage client with application default credentials
func NewGCS(ctx context.Context) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client")
	}
	return &GCS{client: client}, nil
}

// NewWriter opens an object writer that uploads CSV content
func (g *GCS) NewWriter(ctx context.Context, bucket, object string) io.WriteCloser {
	w := g.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/csv; charset=utf-8"
	return w
}

func (g *GCS) Close() error {
	return g.client.Close()
}
