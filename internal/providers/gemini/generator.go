// Package gemini generates images (Imagen) and videos (Veo) through the
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"xsched/internal/config"
	"xsched/internal/xs"
)

// api is the part of the genai client the generator uses.
type api interface {
	GenerateImages(ctx context.Context, model, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	GenerateVideos(ctx context.Context, model, prompt string, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	DownloadVideo(ctx context.Context, v *genai.GeneratedVideo) ([]byte, error)
	GetModel(ctx context.Context, name string) (*genai.Model, error)
}

// Generator implements xs.ImageGenerator and xs.VideoGenerator.
type Generator struct {
	cfg    config.GeminiConfig
	creds  xs.CredentialStore
	logger xs.Logger
	newAPI func(ctx context.Context, apiKey string) (api, error)
	sleep  func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	key    string
	client api
}

// NewGenerator creates a Generator. The API key is read from creds when the
// first request is made.
func NewGenerator(cfg config.GeminiConfig, creds xs.CredentialStore, logger xs.Logger) *Generator {
	return &Generator{
		cfg:    cfg,
		creds:  creds,
		logger: logger,
		newAPI: newSDK,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (g *Generator) api(ctx context.Context) (api, error) {
	key, err := g.creds.Credential(xs.CredentialGeminiAPIKey)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil && g.key == key {
		return g.client, nil
	}
	client, err := g.newAPI(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	g.key, g.client = key, client
	return client, nil
}

// GenerateImage creates one image and prices it at the configured per-image cost.
func (g *Generator) GenerateImage(ctx context.Context, req xs.ImageRequest) (*xs.GeneratedMedia, error) {
	client, err := g.api(ctx)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    req.AspectRatio,
		OutputMIMEType: "image/png",
	}
	if req.Quality == "hd" {
		cfg.ImageSize = "2K"
	}
	g.logger.Debug("generating image", "model", g.cfg.ImageModel, "aspect_ratio", req.AspectRatio)
	resp, err := client.GenerateImages(ctx, g.cfg.ImageModel, req.Prompt, cfg)
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		if len(resp.GeneratedImages) > 0 && resp.GeneratedImages[0].RAIFilteredReason != "" {
			return nil, fmt.Errorf("image filtered: %s", resp.GeneratedImages[0].RAIFilteredReason)
		}
		return nil, fmt.Errorf("no image returned")
	}
	img := resp.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return &xs.GeneratedMedia{
		Data:      img.ImageBytes,
		MIMEType:  mime,
		Extension: extension(mime),
		Cost:      g.cfg.ImageCost,
		Model:     g.cfg.ImageModel,
	}, nil
}

// GenerateVideo starts a video operation, polls it until done and downloads
// the result. Cost is the configured per-second price times the duration.
func (g *Generator) GenerateVideo(ctx context.Context, req xs.VideoRequest) (*xs.GeneratedMedia, error) {
	client, err := g.api(ctx)
	if err != nil {
		return nil, err
	}

	seconds := int32(req.DurationSeconds)
	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos:  1,
		DurationSeconds: &seconds,
		AspectRatio:     req.AspectRatio,
	}
	g.logger.Debug("generating video", "model", g.cfg.VideoModel, "seconds", req.DurationSeconds)
	op, err := client.GenerateVideos(ctx, g.cfg.VideoModel, req.Prompt, cfg)
	if err != nil {
		return nil, mapError(err)
	}

	poll := time.Duration(g.cfg.PollSeconds) * time.Second
	if poll <= 0 {
		poll = 10 * time.Second
	}
	for !op.Done {
		if err := g.sleep(ctx, poll); err != nil {
			return nil, err
		}
		if op, err = client.GetVideosOperation(ctx, op); err != nil {
			return nil, mapError(err)
		}
		g.logger.Debug("video operation polled", "name", op.Name, "done", op.Done)
	}
	if len(op.Error) > 0 {
		return nil, fmt.Errorf("video generation failed: %v", op.Error["message"])
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return nil, fmt.Errorf("no video returned")
	}

	generated := op.Response.GeneratedVideos[0]
	data := generated.Video.VideoBytes
	if len(data) == 0 {
		if data, err = client.DownloadVideo(ctx, generated); err != nil {
			return nil, fmt.Errorf("downloading video: %w", mapError(err))
		}
	}
	mime := generated.Video.MIMEType
	if mime == "" {
		mime = "video/mp4"
	}
	return &xs.GeneratedMedia{
		Data:      data,
		MIMEType:  mime,
		Extension: extension(mime),
		Cost:      g.cfg.VideoCostPerSecond * float64(req.DurationSeconds),
		Model:     g.cfg.VideoModel,
	}, nil
}

// Verify checks the API key by fetching the configured image model.
func (g *Generator) Verify(ctx context.Context) (string, error) {
	client, err := g.api(ctx)
	if err != nil {
		return "", err
	}
	m, err := client.GetModel(ctx, g.cfg.ImageModel)
	if err != nil {
		return "", mapError(err)
	}
	name := m.DisplayName
	if name == "" {
		name = m.Name
	}
	return "gemini api key valid (" + name + ")", nil
}

func extension(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	}
	return ".png"
}

// mapError marks rejected credentials as ErrNotAuthenticated.
func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden,
			strings.Contains(apiErr.Message, "API key not valid"):
			return fmt.Errorf("%w: gemini: %s", xs.ErrNotAuthenticated, apiErr.Message)
		}
	}
	return err
}

var (
	_ xs.ImageGenerator = (*Generator)(nil)
	_ xs.VideoGenerator = (*Generator)(nil)
	_ xs.Verifier       = (*Generator)(nil)
)
