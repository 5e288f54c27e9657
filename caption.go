package imgcap

import (
	"context"
	"errors"

	"github.com/chriskillpack/imgcap/describer"
)

const (
	errorPrefix      = "Error: "
	unexpectedPrefix = "Unexpected error: "
)

// Result is the outcome of captioning a single path. When captioning failed
// Err is set and Caption holds the error text that is reported in its place.
type Result struct {
	Index   int // position of Path in the submitted work list
	Path    string
	Caption string
	Err     error
}

// Failed reports whether the caption is an error message.
func (r Result) Failed() bool { return r.Err != nil }

// Caption loads the image at path and asks d for a caption of at most
// maxTokens tokens. It always returns a Result, failures are reported as
// caption text so a single bad file never stops a batch.
func Caption(ctx context.Context, d describer.Describer, path string, maxTokens int) Result {
	res := Result{Path: path}

	caption, err := caption(ctx, d, path, maxTokens)
	switch {
	case err == nil:
		res.Caption = caption
	case errors.Is(err, ErrUnknownFormat):
		res.Caption = errorPrefix + err.Error()
		res.Err = err
	default:
		res.Caption = unexpectedPrefix + err.Error()
		res.Err = err
	}

	return res
}

func caption(ctx context.Context, d describer.Describer, path string, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, err := LoadImage(path)
	if err != nil {
		return "", err
	}

	return d.DescribeImage(ctx, img, maxTokens)
}
