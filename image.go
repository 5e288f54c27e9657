package imgcap

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/chriskillpack/imgcap/describer"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnknownFormat is returned by LoadImage when the file contents are not
// a recognized image format.
var ErrUnknownFormat = errors.New("unknown image format")

type unknownFormatError struct {
	path string
}

func (e *unknownFormatError) Error() string {
	return fmt.Sprintf("cannot identify image file %q", e.path)
}

func (e *unknownFormatError) Is(target error) bool { return target == ErrUnknownFormat }

// LoadImage reads the image at path and prepares it for a describer. JPEG and
// PNG files are passed through untouched, every other supported format is
// decoded and re-encoded as PNG since not all model servers accept them.
func LoadImage(path string) (*describer.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &unknownFormatError{path: path}
	}

	img := &describer.Image{
		Path:   path,
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}
	if format == "jpeg" || format == "png" {
		return img, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &unknownFormatError{path: path}
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, decoded); err != nil {
		return nil, fmt.Errorf("re-encoding %s as png: %w", format, err)
	}
	img.Data = buf.Bytes()
	img.Format = "png"

	return img, nil
}
