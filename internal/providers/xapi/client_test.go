package xapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"xsched/internal/config"
	"xsched/internal/credentials"
	"xsched/internal/model"
	"xsched/internal/xs"
)

type fakeX struct {
	mu       sync.Mutex
	tweets   []createTweetRequest
	uploads  []string // media_category of each upload
	auths    []string
	status   int
	response string
}

func (f *fakeX) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.status != 0 {
			w.WriteHeader(f.status)
			io.WriteString(w, f.response)
			return
		}
		var req createTweetRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.tweets = append(f.tweets, req)
		f.mu.Unlock()
		io.WriteString(w, `{"data":{"id":"1790000000000000001","text":"ok"}}`)
	})
	mux.HandleFunc("POST /2/media/upload", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("media"); err != nil {
			http.Error(w, "missing media", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.uploads = append(f.uploads, r.FormValue("media_category"))
		n := len(f.uploads)
		f.mu.Unlock()
		io.WriteString(w, `{"data":{"id":"m`+string(rune('0'+n))+`"}}`)
	})
	mux.HandleFunc("GET /2/users/me", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.status != 0 {
			w.WriteHeader(f.status)
			io.WriteString(w, f.response)
			return
		}
		io.WriteString(w, `{"data":{"id":"42","name":"Test Account","username":"tester"}}`)
	})
	return mux
}

func (f *fakeX) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auths = append(f.auths, r.Header.Get("Authorization"))
}

func newTestClient(t *testing.T, f *fakeX, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	creds := credentials.NewMemoryStore(map[string]string{xs.CredentialXAccessToken: token})
	cfg := config.XConfig{BaseURL: srv.URL, RequestsPerMinute: 60000}
	return NewClient(cfg, creds, xs.NewNopLogger()).WithHTTPClient(srv.Client())
}

func TestClient_Post(t *testing.T) {
	f := &fakeX{}
	c := newTestClient(t, f, "secret-token")

	res, err := c.Post(context.Background(), xs.PostRequest{Text: "hello world"})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if res.RemoteID != "1790000000000000001" {
		t.Errorf("RemoteID = %q", res.RemoteID)
	}
	if !strings.HasSuffix(res.URL, "/status/1790000000000000001") {
		t.Errorf("URL = %q", res.URL)
	}
	if len(f.tweets) != 1 || f.tweets[0].Text != "hello world" || f.tweets[0].Media != nil {
		t.Errorf("tweets sent = %+v", f.tweets)
	}
	if f.auths[0] != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want bearer token", f.auths[0])
	}
}

func TestClient_PostWithMedia(t *testing.T) {
	f := &fakeX{}
	c := newTestClient(t, f, "secret-token")

	req := xs.PostRequest{
		Text: "look",
		Media: []xs.MediaAttachment{
			{Name: "/media/images/a.png", Kind: model.MediaImage, MIMEType: "image/png", Content: strings.NewReader("png")},
			{Name: "/media/videos/b.mp4", Kind: model.MediaVideo, MIMEType: "video/mp4", Content: strings.NewReader("mp4")},
		},
	}
	if _, err := c.Post(context.Background(), req); err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	if got := strings.Join(f.uploads, ","); got != "tweet_image,tweet_video" {
		t.Errorf("upload categories = %q", got)
	}
	if len(f.tweets) != 1 || f.tweets[0].Media == nil {
		t.Fatalf("tweets sent = %+v", f.tweets)
	}
	if got := strings.Join(f.tweets[0].Media.MediaIDs, ","); got != "m1,m2" {
		t.Errorf("media_ids = %q, want m1,m2", got)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		response   string
		wantAuth   bool
		wantSubstr string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"title":"Unauthorized","detail":"Unauthorized"}`, true, "Unauthorized"},
		{"forbidden", http.StatusForbidden, `{"detail":"You are not permitted"}`, true, "not permitted"},
		{"rate limited", http.StatusTooManyRequests, `{"title":"Too Many Requests"}`, false, "rate limit"},
		{"server error", http.StatusInternalServerError, `oops`, false, "500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeX{status: tt.status, response: tt.response}
			c := newTestClient(t, f, "token")

			_, err := c.Post(context.Background(), xs.PostRequest{Text: "x"})
			if err == nil {
				t.Fatal("Post() expected error")
			}
			if got := errors.Is(err, xs.ErrNotAuthenticated); got != tt.wantAuth {
				t.Errorf("errors.Is(err, ErrNotAuthenticated) = %v, want %v (err = %v)", got, tt.wantAuth, err)
			}
			if !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantSubstr)
			}
		})
	}
}

func TestClient_Ready(t *testing.T) {
	c := NewClient(config.XConfig{BaseURL: "http://unused"}, credentials.NewMemoryStore(nil), xs.NewNopLogger())
	if err := c.Ready(context.Background()); !errors.Is(err, xs.ErrNotAuthenticated) {
		t.Errorf("Ready() error = %v, want ErrNotAuthenticated", err)
	}
	if _, err := c.Verify(context.Background()); !errors.Is(err, xs.ErrNotAuthenticated) {
		t.Errorf("Verify() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestClient_Verify(t *testing.T) {
	f := &fakeX{}
	c := newTestClient(t, f, "token")

	got, err := c.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != "@tester (Test Account)" {
		t.Errorf("Verify() = %q", got)
	}
}

func TestMediaCategory(t *testing.T) {
	tests := []struct {
		mime string
		kind model.MediaKind
		want string
	}{
		{"image/png", model.MediaImage, "tweet_image"},
		{"image/gif", model.MediaUpload, "tweet_gif"},
		{"video/quicktime", model.MediaUpload, "tweet_video"},
		{"", model.MediaVideo, "tweet_video"},
	}
	for _, tt := range tests {
		if got := mediaCategory(xs.MediaAttachment{MIMEType: tt.mime, Kind: tt.kind}); got != tt.want {
			t.Errorf("mediaCategory(%q, %s) = %q, want %q", tt.mime, tt.kind, got, tt.want)
		}
	}
}
