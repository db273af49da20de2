package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/genai"

	"xsched/internal/config"
	"xsched/internal/credentials"
	"xsched/internal/xs"
)

type fakeAPI struct {
	imageCfg   *genai.GenerateImagesConfig
	videoCfg   *genai.GenerateVideosConfig
	pollsLeft  int
	polls      int
	downloaded bool
	err        error
}

func (f *fakeAPI) GenerateImages(ctx context.Context, model, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.imageCfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{Image: &genai.Image{ImageBytes: []byte("png"), MIMEType: "image/png"}}},
	}, nil
}

func (f *fakeAPI) GenerateVideos(ctx context.Context, model, prompt string, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	f.videoCfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateVideosOperation{Name: "operations/1", Done: f.pollsLeft == 0}, nil
}

func (f *fakeAPI) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	f.polls++
	f.pollsLeft--
	if f.pollsLeft > 0 {
		return &genai.GenerateVideosOperation{Name: op.Name}, nil
	}
	return &genai.GenerateVideosOperation{
		Name: op.Name,
		Done: true,
		Response: &genai.GenerateVideosResponse{
			GeneratedVideos: []*genai.GeneratedVideo{{Video: &genai.Video{URI: "https://example/v.mp4", MIMEType: "video/mp4"}}},
		},
	}, nil
}

func (f *fakeAPI) DownloadVideo(ctx context.Context, v *genai.GeneratedVideo) ([]byte, error) {
	f.downloaded = true
	return []byte("mp4"), nil
}

func (f *fakeAPI) GetModel(ctx context.Context, name string) (*genai.Model, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &genai.Model{Name: "models/" + name, DisplayName: "Imagen 4"}, nil
}

func newTestGenerator(f *fakeAPI, key string) *Generator {
	cfg := config.NewConfig("/tmp").Providers.Gemini
	creds := credentials.NewMemoryStore(map[string]string{xs.CredentialGeminiAPIKey: key})
	g := NewGenerator(cfg, creds, xs.NewNopLogger())
	g.newAPI = func(ctx context.Context, apiKey string) (api, error) { return f, nil }
	g.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return g
}

func TestGenerator_GenerateImage(t *testing.T) {
	f := &fakeAPI{}
	g := newTestGenerator(f, "key")

	got, err := g.GenerateImage(context.Background(), xs.ImageRequest{Prompt: "a cat", AspectRatio: "16:9", Quality: "hd"})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if string(got.Data) != "png" || got.Extension != ".png" || got.MIMEType != "image/png" {
		t.Errorf("GenerateImage() = %+v", got)
	}
	if got.Cost != 0.04 {
		t.Errorf("Cost = %v, want 0.04", got.Cost)
	}
	if f.imageCfg.AspectRatio != "16:9" || f.imageCfg.ImageSize != "2K" {
		t.Errorf("image config = %+v", f.imageCfg)
	}
}

func TestGenerator_GenerateVideo_Polls(t *testing.T) {
	f := &fakeAPI{pollsLeft: 3}
	g := newTestGenerator(f, "key")

	got, err := g.GenerateVideo(context.Background(), xs.VideoRequest{Prompt: "waves", DurationSeconds: 5})
	if err != nil {
		t.Fatalf("GenerateVideo() error = %v", err)
	}
	if f.polls != 3 {
		t.Errorf("polls = %d, want 3", f.polls)
	}
	if !f.downloaded || string(got.Data) != "mp4" || got.Extension != ".mp4" {
		t.Errorf("GenerateVideo() = %+v, downloaded = %v", got, f.downloaded)
	}
	if got.Cost != 2.0 {
		t.Errorf("Cost = %v, want 2.0", got.Cost)
	}
	if f.videoCfg.DurationSeconds == nil || *f.videoCfg.DurationSeconds != 5 {
		t.Errorf("DurationSeconds = %v, want 5", f.videoCfg.DurationSeconds)
	}
}

func TestGenerator_GenerateVideo_Cancelled(t *testing.T) {
	f := &fakeAPI{pollsLeft: 5}
	g := newTestGenerator(f, "key")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.GenerateVideo(ctx, xs.VideoRequest{Prompt: "waves", DurationSeconds: 5}); !errors.Is(err, context.Canceled) {
		t.Errorf("GenerateVideo() error = %v, want context.Canceled", err)
	}
}

func TestGenerator_MissingKey(t *testing.T) {
	g := newTestGenerator(&fakeAPI{}, "")
	if _, err := g.GenerateImage(context.Background(), xs.ImageRequest{Prompt: "x"}); !errors.Is(err, xs.ErrNotAuthenticated) {
		t.Errorf("GenerateImage() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestGenerator_Verify(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		g := newTestGenerator(&fakeAPI{}, "key")
		got, err := g.Verify(context.Background())
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if got != "gemini api key valid (Imagen 4)" {
			t.Errorf("Verify() = %q", got)
		}
	})

	t.Run("rejected key", func(t *testing.T) {
		f := &fakeAPI{err: genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key."}}
		g := newTestGenerator(f, "bad")
		if _, err := g.Verify(context.Background()); !errors.Is(err, xs.ErrNotAuthenticated) {
			t.Errorf("Verify() error = %v, want ErrNotAuthenticated", err)
		}
	})
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"video/mp4":  ".mp4",
		"":           ".png",
	}
	for mime, want := range tests {
		if got := extension(mime); got != want {
			t.Errorf("extension(%q) = %q, want %q", mime, got, want)
		}
	}
}
