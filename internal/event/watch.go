package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/vidtube/backend/pkg/errors"
	pkgkafka "github.com/vidtube/backend/pkg/kafka"
)

// TopicVideoWatched carries one event per watched video.
var TopicVideoWatched = pkgkafka.Topic("video", "watched")

// VideoWatchedData is the payload of video.watched.
type VideoWatchedData struct {
	UserID  string `json:"user_id"`
	VideoID string `json:"video_id"`
}

// WatchRecorder appends a video to a user's watch history.
type WatchRecorder interface {
	RecordWatch(ctx context.Context, userID, videoID string) error
}

// WatchHandler returns a consumer handler that records watched videos.
// Payloads that can never succeed are marked permanent so they go straight
// to the dead-letter topic.
func WatchHandler(recorder WatchRecorder, logger *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, event *pkgkafka.Event) error {
		var data VideoWatchedData
		if err := event.UnmarshalData(&data); err != nil {
			return pkgkafka.Permanent(fmt.Errorf("decode video.watched payload: %w", err))
		}
		if err := uuid.Validate(data.UserID); err != nil {
			return pkgkafka.Permanent(fmt.Errorf("invalid user_id %q: %w", data.UserID, err))
		}
		if err := uuid.Validate(data.VideoID); err != nil {
			return pkgkafka.Permanent(fmt.Errorf("invalid video_id %q: %w", data.VideoID, err))
		}

		if err := recorder.RecordWatch(ctx, data.UserID, data.VideoID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return pkgkafka.Permanent(fmt.Errorf("record watch: %w", err))
			}
			return fmt.Errorf("record watch: %w", err)
		}

		logger.DebugContext(ctx, "watch recorded",
			slog.String("event_id", event.EventID),
			slog.String("user_id", data.UserID),
			slog.String("video_id", data.VideoID),
		)
		return nil
	}
}
