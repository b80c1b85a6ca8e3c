package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/session"
	"go.uber.org/zap"
)

// DefaultDir matches the harness's historical report layout.
const DefaultDir = "reports/screenshots"

const timestampLayout = "20060102_150405.000000000"

var ErrNoSession = errors.New("no live session")

// CaptureError is returned for every failed capture.
type CaptureError struct {
	TestID string
	Op     string
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s for %s: %v", e.Op, e.TestID, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Ref points at a stored artifact.
type Ref struct {
	TestID     string
	Path       string
	Size       int
	CapturedAt time.Time
}

// Capturer writes screenshots for one run.
type Capturer struct {
	dir string
	log *zap.Logger
	now func() time.Time
}

type Option func(*Capturer)

func WithLogger(log *zap.Logger) Option {
	return func(c *Capturer) {
		c.log = log
	}
}

// WithClock overrides the timestamp source used in file names.
func WithClock(now func() time.Time) Option {
	return func(c *Capturer) {
		c.now = now
	}
}

func NewCapturer(dir string, opts ...Option) *Capturer {
	if dir == "" {
		dir = DefaultDir
	}
	c := &Capturer{
		dir: dir,
		log: zap.NewNop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Capturer) Dir() string {
	return c.dir
}

// Bytes returns a raw PNG from h without storing it.
func (c *Capturer) Bytes(ctx context.Context, h *session.Handle, testID string) ([]byte, error) {
	if h == nil || !h.Alive() {
		return nil, &CaptureError{TestID: testID, Op: "screenshot", Err: ErrNoSession}
	}
	png, err := h.Driver().Screenshot(ctx)
	if err != nil {
		return nil, &CaptureError{TestID: testID, Op: "screenshot", Err: err}
	}
	if len(png) == 0 {
		return nil, &CaptureError{TestID: testID, Op: "screenshot", Err: errors.New("empty image")}
	}
	return png, nil
}

// Capture stores a screenshot of h's current screen for testID.
func (c *Capturer) Capture(ctx context.Context, h *session.Handle, testID string) (Ref, error) {
	return c.store(ctx, h, testID, Sanitize(testID))
}

// CaptureStep stores a screenshot taken after step n of testID.
func (c *Capturer) CaptureStep(ctx context.Context, h *session.Handle, testID string, n int) (Ref, error) {
	return c.store(ctx, h, testID, fmt.Sprintf("%s_step%02d", Sanitize(testID), n))
}

// OnFailure captures and logs any error, returning the stored path or "".
func (c *Capturer) OnFailure(ctx context.Context, h *session.Handle, testID string) string {
	ref, err := c.Capture(ctx, h, testID)
	if err != nil {
		c.log.Warn("screenshot capture failed", zap.String("test", testID), zap.Error(err))
		return ""
	}
	c.log.Debug("screenshot captured", zap.String("test", testID), zap.String("path", ref.Path))
	return ref.Path
}

func (c *Capturer) store(ctx context.Context, h *session.Handle, testID, base string) (Ref, error) {
	png, err := c.Bytes(ctx, h, testID)
	if err != nil {
		return Ref{}, err
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return Ref{}, &CaptureError{TestID: testID, Op: "mkdir", Err: err}
	}

	at := c.now()
	stem := base + "_" + at.Format(timestampLayout)
	path, err := writeExclusive(c.dir, stem, png)
	if err != nil {
		return Ref{}, &CaptureError{TestID: testID, Op: "write", Err: err}
	}

	return Ref{TestID: testID, Path: path, Size: len(png), CapturedAt: at}, nil
}

// writeExclusive never overwrites: a clashing name gets a numeric suffix.
func writeExclusive(dir, stem string, data []byte) (string, error) {
	for i := 0; i < 100; i++ {
		name := stem + ".png"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.png", stem, i)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("no free file name for %s", stem)
}

// Sanitize makes a test identity safe for use in a file name.
func Sanitize(testID string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(testID))
	s = strings.Trim(s, ".")
	if s == "" {
		return "test"
	}
	return s
}
