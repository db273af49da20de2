package xs

import (
	"context"
	"io"

	"xsched/internal/model"
)

// MediaAttachment is one media file handed to the poster.
type MediaAttachment struct {
	Name     string
	Kind     model.MediaKind
	MIMEType string
	Content  io.Reader
}

// PostRequest is the text and media of one post.
type PostRequest struct {
	Text  string
	Media []MediaAttachment
}

// PostResult identifies the post on the remote platform.
type PostResult struct {
	RemoteID string
	URL      string
}

// Verifier checks that a collaborator's credentials work and returns a
// human-readable description of the authenticated account.
type Verifier interface {
	Verify(ctx context.Context) (string, error)
}

// Poster publishes posts on the social platform.
type Poster interface {
	Verifier

	// Ready reports ErrNotAuthenticated when no credentials are available.
	// It performs no network calls.
	Ready(ctx context.Context) error

	Post(ctx context.Context, req PostRequest) (*PostResult, error)
}

// ImageRequest describes an image to generate.
type ImageRequest struct {
	Prompt      string
	AspectRatio string // "1:1", "9:16" or "16:9"
	Quality     string // "standard" or "hd"
}

// VideoRequest describes a video to generate.
type VideoRequest struct {
	Prompt          string
	DurationSeconds int
	AspectRatio     string
}

// GeneratedMedia is the output of a generation call and what it cost.
type GeneratedMedia struct {
	Data      []byte
	MIMEType  string
	Extension string
	Cost      float64
	Model     string
}

// ImageGenerator creates images from prompts.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*GeneratedMedia, error)
}

// VideoGenerator creates videos from prompts.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, req VideoRequest) (*GeneratedMedia, error)
}
