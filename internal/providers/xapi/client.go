// Package xapi posts to X through the v2 HTTP API.
package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"xsched/internal/config"
	"xsched/internal/model"
	"xsched/internal/xs"
)

// Client implements xs.Poster against the X API v2.
type Client struct {
	baseURL   string
	uploadURL string
	creds     xs.CredentialStore
	limiter   *rate.Limiter
	base      *http.Client
	logger    xs.Logger
}

// NewClient creates a Client. The access token is read from creds on every
// request, so credentials saved after startup are picked up.
func NewClient(cfg config.XConfig, creds xs.CredentialStore, logger xs.Logger) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 50
	}
	uploadURL := cfg.UploadURL
	if uploadURL == "" {
		uploadURL = cfg.BaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		uploadURL: strings.TrimRight(uploadURL, "/"),
		creds:     creds,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		base:      &http.Client{Timeout: 60 * time.Second},
		logger:    logger,
	}
}

// WithHTTPClient replaces the underlying transport client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.base = hc
	return c
}

// Ready reports whether an access token is configured.
func (c *Client) Ready(ctx context.Context) error {
	if !c.creds.Has(xs.CredentialXAccessToken) {
		return fmt.Errorf("%w: no X access token; run auth setup x", xs.ErrNotAuthenticated)
	}
	return nil
}

// httpClient returns a client that adds the bearer token to every request.
func (c *Client) httpClient(ctx context.Context) (*http.Client, error) {
	token, err := c.creds.Credential(xs.CredentialXAccessToken)
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	})), nil
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e apiError) message() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Title != "":
		return e.Title
	case len(e.Errors) > 0:
		return e.Errors[0].Message
	}
	return ""
}

// do sends req and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	hc, err := c.httpClient(ctx)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("x api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading x api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.message() != "" {
			msg = apiErr.message()
		}
		c.logger.Debug("x api error", "path", req.URL.Path, "status", resp.StatusCode, "message", msg)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: x api returned %d: %s", xs.ErrNotAuthenticated, resp.StatusCode, msg)
		case http.StatusTooManyRequests:
			return fmt.Errorf("x api rate limit exceeded (reset %s): %s", resp.Header.Get("x-rate-limit-reset"), msg)
		}
		return fmt.Errorf("x api returned %d: %s", resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding x api response: %w", err)
	}
	return nil
}

type createTweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// Post uploads the attachments and creates the tweet.
func (c *Client) Post(ctx context.Context, req xs.PostRequest) (*xs.PostResult, error) {
	payload := createTweetRequest{Text: req.Text}
	if len(req.Media) > 0 {
		ids := make([]string, 0, len(req.Media))
		for _, m := range req.Media {
			id, err := c.upload(ctx, m)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		payload.Media = &tweetMedia{MediaIDs: ids}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out createTweetResponse
	if err := c.do(ctx, httpReq, &out); err != nil {
		return nil, err
	}
	if out.Data.ID == "" {
		return nil, fmt.Errorf("x api returned no tweet id")
	}
	c.logger.Debug("tweet created", "remote_id", out.Data.ID, "media", len(req.Media))
	return &xs.PostResult{
		RemoteID: out.Data.ID,
		URL:      "https://x.com/i/web/status/" + out.Data.ID,
	}, nil
}

type uploadResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func mediaCategory(m xs.MediaAttachment) string {
	switch {
	case m.MIMEType == "image/gif":
		return "tweet_gif"
	case strings.HasPrefix(m.MIMEType, "video/"), m.Kind == model.MediaVideo:
		return "tweet_video"
	}
	return "tweet_image"
}

// upload sends one attachment as a multipart form and returns its media id.
func (c *Client) upload(ctx context.Context, m xs.MediaAttachment) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("media_category", mediaCategory(m)); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("media", baseName(m.Name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, m.Content); err != nil {
		return "", fmt.Errorf("reading media %s: %w", m.Name, err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.uploadURL+"/2/media/upload", &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	var out uploadResponse
	if err := c.do(ctx, httpReq, &out); err != nil {
		return "", fmt.Errorf("uploading media: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("x api returned no media id for %s", m.Name)
	}
	return out.Data.ID, nil
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

type userResponse struct {
	Data struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"data"`
}

// Verify returns the authenticated account as "@username (name)".
func (c *Client) Verify(ctx context.Context) (string, error) {
	if err := c.Ready(ctx); err != nil {
		return "", err
	}
	httpReq, err := http.NewRequest(http.MethodGet, c.baseURL+"/2/users/me", nil)
	if err != nil {
		return "", err
	}
	var out userResponse
	if err := c.do(ctx, httpReq, &out); err != nil {
		return "", err
	}
	if out.Data.Name == "" {
		return "@" + out.Data.Username, nil
	}
	return fmt.Sprintf("@%s (%s)", out.Data.Username, out.Data.Name), nil
}

// Compile-time check that Client implements xs.Poster interface
var _ xs.Poster = (*Client)(nil)
