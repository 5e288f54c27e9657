package describer

import "context"

// Image is a decoded-and-verified image ready to be sent to a model.
type Image struct {
	Path   string
	Data   []byte // JPEG or PNG encoded
	Format string // "jpeg" or "png"
	Width  int
	Height int
}

// MIMEType returns the content type of Data.
func (img *Image) MIMEType() string {
	return "image/" + img.Format
}

// Describer captions an image using a specific model backend. Implementations
// must be safe for concurrent use, a single Describer is shared by all
// caption workers.
type Describer interface {
	// Name returns the name of the backend, e.g. "llama" or "huggingface"
	Name() string

	// Model returns the name of the model used by the backend.
	Model() string

	// DescribeImage returns the first caption the model generates for img,
	// limited to maxTokens new tokens. The provided ctx is used as a parent
	// context for the request to the model server.
	DescribeImage(ctx context.Context, img *Image, maxTokens int) (string, error)

	// IsHealthy returns whether the model server is reachable and able to
	// serve requests.
	IsHealthy(ctx context.Context) bool
}
