package gemini

import (
	"context"

	"google.golang.org/genai"
)

// sdk adapts *genai.Client to api.
type sdk struct {
	client *genai.Client
}

func newSDK(ctx context.Context, apiKey string) (api, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &sdk{client: client}, nil
}

func (s *sdk) GenerateImages(ctx context.Context, model, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	return s.client.Models.GenerateImages(ctx, model, prompt, cfg)
}

func (s *sdk) GenerateVideos(ctx context.Context, model, prompt string, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return s.client.Models.GenerateVideos(ctx, model, prompt, nil, cfg)
}

func (s *sdk) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return s.client.Operations.GetVideosOperation(ctx, op, nil)
}

func (s *sdk) DownloadVideo(ctx context.Context, v *genai.GeneratedVideo) ([]byte, error) {
	return s.client.Files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(v), nil)
}

func (s *sdk) GetModel(ctx context.Context, name string) (*genai.Model, error) {
	return s.client.Models.Get(ctx, name, nil)
}
