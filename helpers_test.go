package imgcap

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chriskillpack/imgcap/describer"
	"golang.org/x/image/bmp"
)

type stubDescriber struct {
	caption string
	err     error
	delay   func(path string) time.Duration

	mu        sync.Mutex
	calls     []*describer.Image
	maxTokens int
	inflight  int
	peak      int
}

var _ describer.Describer = &stubDescriber{}

func (s *stubDescriber) Name() string                   { return "stub" }
func (s *stubDescriber) Model() string                  { return "stub-model" }
func (s *stubDescriber) IsHealthy(context.Context) bool { return true }

func (s *stubDescriber) DescribeImage(ctx context.Context, img *describer.Image, maxTokens int) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, img)
	s.maxTokens = maxTokens
	s.inflight++
	s.peak = max(s.peak, s.inflight)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	if s.delay != nil {
		select {
		case <-time.After(s.delay(img.Path)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return s.caption, nil
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := range 4 {
		img.Set(x, 1, color.RGBA{R: 255, A: 255})
	}
	return img
}

// writeImage creates a small image at path encoded according to its
// extension. Unknown extensions get PNG data.
func writeImage(t *testing.T, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	switch filepath.Ext(path) {
	case ".gif":
		err = gif.Encode(f, testImage(), nil)
	case ".bmp":
		err = bmp.Encode(f, testImage())
	default:
		err = png.Encode(f, testImage())
	}
	if err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}
