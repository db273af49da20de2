package testutil

import (
	"context"
	"sync"

	"xsched/internal/xs"
)

// FakeGenerator implements xs.ImageGenerator and xs.VideoGenerator with
// canned output. Err, when set, fails every call.
type FakeGenerator struct {
	mu         sync.Mutex
	ImageCost  float64
	VideoCost  float64 // per second
	Err        error
	imageCalls []xs.ImageRequest
	videoCalls []xs.VideoRequest
}

// NewFakeGenerator creates a generator charging imageCost per image and
// videoCost per video second.
func NewFakeGenerator(imageCost, videoCost float64) *FakeGenerator {
	return &FakeGenerator{ImageCost: imageCost, VideoCost: videoCost}
}

func (g *FakeGenerator) GenerateImage(ctx context.Context, req xs.ImageRequest) (*xs.GeneratedMedia, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.imageCalls = append(g.imageCalls, req)
	if g.Err != nil {
		return nil, g.Err
	}
	return &xs.GeneratedMedia{
		Data:      []byte("\x89PNG fake image: " + req.Prompt),
		MIMEType:  "image/png",
		Extension: ".png",
		Cost:      g.ImageCost,
		Model:     "fake-image",
	}, nil
}

func (g *FakeGenerator) GenerateVideo(ctx context.Context, req xs.VideoRequest) (*xs.GeneratedMedia, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.videoCalls = append(g.videoCalls, req)
	if g.Err != nil {
		return nil, g.Err
	}
	return &xs.GeneratedMedia{
		Data:      []byte("fake video: " + req.Prompt),
		MIMEType:  "video/mp4",
		Extension: ".mp4",
		Cost:      g.VideoCost * float64(req.DurationSeconds),
		Model:     "fake-video",
	}, nil
}

// Calls returns how many images and videos were requested.
func (g *FakeGenerator) Calls() (images, videos int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.imageCalls), len(g.videoCalls)
}

var (
	_ xs.ImageGenerator = (*FakeGenerator)(nil)
	_ xs.VideoGenerator = (*FakeGenerator)(nil)
)
