package xs

import (
	"bytes"
	"context"
	"strings"

	"xsched/internal/model"
)

// Video duration bounds accepted by the generator, in seconds.
const (
	MinVideoSeconds = 1
	MaxVideoSeconds = 30
)

var mediaTypes = map[string]struct {
	kind model.MediaKind
	mime string
}{
	".jpg":  {model.MediaImage, "image/jpeg"},
	".jpeg": {model.MediaImage, "image/jpeg"},
	".png":  {model.MediaImage, "image/png"},
	".gif":  {model.MediaImage, "image/gif"},
	".webp": {model.MediaImage, "image/webp"},
	".mp4":  {model.MediaVideo, "video/mp4"},
	".mov":  {model.MediaVideo, "video/quicktime"},
}

// MediaOptions configures media generation.
type MediaOptions struct {
	MonthlyBudget float64
	// BlockOverBudget refuses generation once the monthly budget is spent.
	BlockOverBudget bool
}

// MediaService generates, uploads and tracks media files for tweets.
type MediaService struct {
	database Database
	store    MediaStore
	fsmgr    FilesystemManager
	usage    *UsageTracker
	images   ImageGenerator
	videos   VideoGenerator
	logger   Logger
	idgen    IDGenerator
	clock    Clock
	opts     MediaOptions
}

// NewMediaService creates a MediaService with the provided dependencies.
func NewMediaService(database Database, store MediaStore, fsmgr FilesystemManager, usage *UsageTracker, images ImageGenerator, videos VideoGenerator, logger Logger, idgen IDGenerator, clock Clock, opts MediaOptions) *MediaService {
	return &MediaService{
		database: database,
		store:    store,
		fsmgr:    fsmgr,
		usage:    usage,
		images:   images,
		videos:   videos,
		logger:   logger,
		idgen:    idgen,
		clock:    clock,
		opts:     opts,
	}
}

// Generated is a stored generation result and the budget state after it.
type Generated struct {
	Media  *model.Media
	Budget *BudgetStatus
}

// GenerateImage creates an image, optionally for a tweet. Nothing is stored
// if the generator fails.
func (s *MediaService) GenerateImage(ctx context.Context, req ImageRequest, tweetID *int64) (*Generated, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, kindError(ErrValidation, "prompt is empty")
	}
	switch req.AspectRatio {
	case "", "1:1", "9:16", "16:9":
	default:
		return nil, kindError(ErrValidation, "unsupported aspect ratio %q", req.AspectRatio)
	}
	switch req.Quality {
	case "", "standard", "hd":
	default:
		return nil, kindError(ErrValidation, "unsupported quality %q", req.Quality)
	}

	return s.generate(model.MediaImage, "image_generate", req.Prompt, tweetID, func() (*GeneratedMedia, error) {
		return s.images.GenerateImage(ctx, req)
	})
}

// GenerateVideo creates a video, optionally for a tweet.
func (s *MediaService) GenerateVideo(ctx context.Context, req VideoRequest, tweetID *int64) (*Generated, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, kindError(ErrValidation, "prompt is empty")
	}
	if req.DurationSeconds < MinVideoSeconds || req.DurationSeconds > MaxVideoSeconds {
		return nil, kindError(ErrValidation, "duration %ds outside %d..%d seconds", req.DurationSeconds, MinVideoSeconds, MaxVideoSeconds)
	}

	return s.generate(model.MediaVideo, "video_generate", req.Prompt, tweetID, func() (*GeneratedMedia, error) {
		return s.videos.GenerateVideo(ctx, req)
	})
}

func (s *MediaService) generate(kind model.MediaKind, operation, prompt string, tweetID *int64, call func() (*GeneratedMedia, error)) (*Generated, error) {
	if tweetID != nil {
		if err := s.checkAttachable(*tweetID); err != nil {
			return nil, err
		}
	}

	budget, err := s.usage.CheckBudget(s.opts.MonthlyBudget)
	if err != nil {
		return nil, err
	}
	if budget.Over {
		s.logger.Warn("monthly budget exhausted", "spent", budget.Spent, "limit", budget.Limit)
		if s.opts.BlockOverBudget {
			return nil, budget.Err()
		}
	}

	gen, err := call()
	if err != nil {
		return nil, collaboratorError("generating "+string(kind), err)
	}
	if len(gen.Data) == 0 {
		return nil, kindError(ErrCollaborator, "generator returned no %s data", kind)
	}

	// the cost is incurred once the generator returns, whatever happens next
	if _, err := s.usage.RecordCall("gemini", operation, gen.Cost); err != nil {
		return nil, err
	}

	path, err := s.store.Put(kind, s.idgen.New()+gen.Extension, bytes.NewReader(gen.Data), int64(len(gen.Data)))
	if err != nil {
		return nil, storeError("writing "+string(kind), err)
	}
	media, err := s.database.CreateMedia(&model.Media{
		TweetID:        tweetID,
		FilePath:       path,
		Kind:           kind,
		MIMEType:       gen.MIMEType,
		GenerationCost: gen.Cost,
		Prompt:         prompt,
		CreatedAt:      s.clock.Now().UTC(),
	})
	if err != nil {
		if rmErr := s.store.Remove(path); rmErr != nil {
			s.logger.Warn("failed to remove orphaned media", "path", path, "error", rmErr)
		}
		return nil, storeError("recording media", err)
	}

	budget, err = s.usage.CheckBudget(s.opts.MonthlyBudget)
	if err != nil {
		return nil, err
	}
	s.logger.Info("media generated", "id", media.ID, "kind", string(kind), "model", gen.Model, "cost", gen.Cost)
	return &Generated{Media: media, Budget: budget}, nil
}

// Attach copies a user file into the media store and attaches it to a tweet.
func (s *MediaService) Attach(tweetID int64, rawPath string) (*model.Media, error) {
	if err := s.checkAttachable(tweetID); err != nil {
		return nil, err
	}

	p, err := s.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, kindError(ErrValidation, "resolving media file: %v", err)
	}
	mt, ok := mediaTypes[p.Ext()]
	if !ok {
		return nil, kindError(ErrValidation, "unsupported media type %q", p.Ext())
	}

	rc, err := s.fsmgr.Open(p)
	if err != nil {
		return nil, kindError(ErrValidation, "opening media file: %v", err)
	}
	defer rc.Close()

	path, err := s.store.Put(model.MediaUpload, s.idgen.New()+p.Ext(), rc, p.Size())
	if err != nil {
		return nil, storeError("copying media file", err)
	}
	media, err := s.database.CreateMedia(&model.Media{
		TweetID:   &tweetID,
		FilePath:  path,
		Kind:      model.MediaUpload,
		MIMEType:  mt.mime,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		if rmErr := s.store.Remove(path); rmErr != nil {
			s.logger.Warn("failed to remove orphaned media", "path", path, "error", rmErr)
		}
		return nil, storeError("recording media", err)
	}
	s.logger.Info("media attached", "id", media.ID, "tweet", tweetID, "type", string(mt.kind), "source", p.String())
	return media, nil
}

func (s *MediaService) checkAttachable(tweetID int64) error {
	tweet, err := s.database.FindTweet(tweetID)
	if err != nil {
		return storeError("finding tweet", err)
	}
	if tweet == nil {
		return kindError(ErrNotFound, "tweet %d", tweetID)
	}
	if tweet.Status == model.StatusPosted || tweet.Status == model.StatusPosting {
		return kindError(ErrInvalidState, "cannot attach media to tweet %d in state %s", tweetID, tweet.Status)
	}
	return nil
}

// List returns media for one tweet, or all media when tweetID is nil.
func (s *MediaService) List(tweetID *int64) ([]*model.Media, error) {
	media, err := s.database.ListMedia(tweetID)
	if err != nil {
		return nil, storeError("listing media", err)
	}
	return media, nil
}

// Remove deletes a media row and its file.
func (s *MediaService) Remove(id int64) error {
	media, err := s.database.FindMedia(id)
	if err != nil {
		return storeError("finding media", err)
	}
	if media == nil {
		return kindError(ErrNotFound, "media %d", id)
	}
	if err := s.database.DeleteMedia(id); err != nil {
		return storeError("deleting media", err)
	}
	if err := s.store.Remove(media.FilePath); err != nil {
		s.logger.Warn("failed to remove media file", "path", media.FilePath, "error", err)
	}
	s.logger.Info("media removed", "id", id)
	return nil
}
