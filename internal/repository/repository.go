package repository

import (
	"context"

	"github.com/vidtube/backend/internal/domain"
)

// DuplicateUserMessage is the conflict message for a taken username or email.
const DuplicateUserMessage = "user with email or username already exists"

// UserRepository defines persistence for user accounts. Writes are
// field-specific so that only password mutations touch the hash.
type UserRepository interface {
	// Create inserts a new user. Duplicate usernames or emails yield an
	// AlreadyExists error.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by id.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// FindByUserNameOrEmail returns the first user whose username equals
	// userName or whose email equals email. Empty arguments never match.
	FindByUserNameOrEmail(ctx context.Context, userName, email string) (*domain.User, error)

	// UpdateAccount sets full name and email and returns the updated user.
	UpdateAccount(ctx context.Context, id, fullName, email string) (*domain.User, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// UpdateAvatar sets the avatar URL and returns the updated user.
	UpdateAvatar(ctx context.Context, id, url string) (*domain.User, error)

	// UpdateCoverImage sets the cover image URL and returns the updated user.
	UpdateCoverImage(ctx context.Context, id, url string) (*domain.User, error)
}

// SessionStore holds the single active refresh token per user.
type SessionStore interface {
	// SetRefreshToken overwrites the stored token unconditionally.
	SetRefreshToken(ctx context.Context, userID, token string) error

	// ClearRefreshToken removes the stored token. Clearing an absent
	// token is not an error.
	ClearRefreshToken(ctx context.Context, userID string) error

	// GetRefreshToken returns the stored token, or "" when none is set.
	GetRefreshToken(ctx context.Context, userID string) (string, error)
}

// ChannelRepository serves the channel and watch-history projections.
type ChannelRepository interface {
	// GetChannelProfile aggregates subscriber counts for the channel owned
	// by userName, as seen by viewerID.
	GetChannelProfile(ctx context.Context, userName, viewerID string) (*domain.ChannelProfile, error)

	// GetWatchHistory returns the user's watched videos in watch order.
	GetWatchHistory(ctx context.Context, userID string) ([]domain.WatchedVideo, error)

	// AppendWatchHistory records that userID watched videoID.
	AppendWatchHistory(ctx context.Context, userID, videoID string) error
}
