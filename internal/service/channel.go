package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/repository"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

// ChannelService serves the channel profile and watch history.
type ChannelService struct {
	channels repository.ChannelRepository
	logger   *slog.Logger
}

// NewChannelService creates a new channel service.
func NewChannelService(channels repository.ChannelRepository, logger *slog.Logger) *ChannelService {
	return &ChannelService{channels: channels, logger: logger}
}

// GetChannelProfile returns the channel of userName as seen by viewerID.
func (s *ChannelService) GetChannelProfile(ctx context.Context, userName, viewerID string) (*domain.ChannelProfile, error) {
	userName = domain.NormalizeIdentifier(userName)
	if userName == "" {
		return nil, apperrors.InvalidInput("username is missing")
	}

	profile, err := s.channels.GetChannelProfile(ctx, userName, viewerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage("channel does not exist")
		}
		return nil, fmt.Errorf("get channel profile: %w", err)
	}
	return profile, nil
}

// GetWatchHistory returns the user's watched videos, oldest first.
func (s *ChannelService) GetWatchHistory(ctx context.Context, userID string) ([]domain.WatchedVideo, error) {
	history, err := s.channels.GetWatchHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get watch history: %w", err)
	}
	return history, nil
}

// RecordWatch appends videoID to the user's watch history. Unknown users or
// videos yield an error wrapping apperrors.ErrNotFound.
func (s *ChannelService) RecordWatch(ctx context.Context, userID, videoID string) error {
	if err := s.channels.AppendWatchHistory(ctx, userID, videoID); err != nil {
		return fmt.Errorf("append watch history: %w", err)
	}
	s.logger.DebugContext(ctx, "watch history appended",
		slog.String("user_id", userID),
		slog.String("video_id", videoID),
	)
	return nil
}
