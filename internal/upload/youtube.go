package upload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// ErrYouTubeNotConfigured is returned when OAuth credentials are incomplete.
var ErrYouTubeNotConfigured = errors.New("youtube: client ID, client secret and refresh token are required")

// YouTubeConfig holds the OAuth credentials and video defaults.
type YouTubeConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Privacy      string // public, unlisted or private; default unlisted
	CategoryID   string
	Tags         []string
}

// YouTubeUploader publishes to YouTube through the Data API v3.
type YouTubeUploader struct {
	service *youtube.Service
	cfg     YouTubeConfig
}

// NewYouTubeUploader authenticates with a refresh token and creates the
// YouTube service. Extra client options are appended after the
// authenticated HTTP client.
func NewYouTubeUploader(ctx context.Context, cfg YouTubeConfig, opts ...option.ClientOption) (*YouTubeUploader, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, ErrYouTubeNotConfigured
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	client := conf.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return NewYouTubeUploaderWithService(svc, cfg), nil
}

// NewYouTubeUploaderWithService creates an uploader around an existing service.
func NewYouTubeUploaderWithService(svc *youtube.Service, cfg YouTubeConfig) *YouTubeUploader {
	if cfg.Privacy == "" {
		cfg.Privacy = "unlisted"
	}
	if cfg.CategoryID == "" {
		cfg.CategoryID = "1" // Film & Animation
	}
	return &YouTubeUploader{service: svc, cfg: cfg}
}

// Start implements Uploader.
func (u *YouTubeUploader) Start(ctx context.Context, path string) *Upload {
	return start(ctx, "youtube", path, func(ctx context.Context, body *progressReader) (string, error) {
		video := &youtube.Video{
			Snippet: &youtube.VideoSnippet{
				Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
				CategoryId: u.cfg.CategoryID,
				Tags:       u.cfg.Tags,
			},
			Status: &youtube.VideoStatus{
				PrivacyStatus:           u.cfg.Privacy,
				SelfDeclaredMadeForKids: false,
			},
		}

		resp, err := u.service.Videos.Insert([]string{"snippet", "status"}, video).
			Media(body).
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("youtube insert: %w", err)
		}
		if resp.Id == "" {
			return "", ErrNoPlaybackURL
		}
		return "https://www.youtube.com/watch?v=" + resp.Id, nil
	})
}

var _ Uploader = (*YouTubeUploader)(nil)
