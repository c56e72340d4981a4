package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/event"
	"github.com/vidtube/backend/internal/repository"
	"github.com/vidtube/backend/internal/storage"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

const (
	folderAvatars = "avatars"
	folderCovers  = "covers"
)

// File is an uploaded file handed over by the transport layer.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
	Size        int64
}

// UserService implements registration, the session lifecycle and account
// updates.
type UserService struct {
	users    repository.UserRepository
	sessions repository.SessionStore
	tokens   *auth.TokenIssuer
	hasher   *auth.PasswordHasher
	media    storage.Storage
	producer *event.Producer
	logger   *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	users repository.UserRepository,
	sessions repository.SessionStore,
	tokens *auth.TokenIssuer,
	hasher *auth.PasswordHasher,
	media storage.Storage,
	producer *event.Producer,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		media:    media,
		producer: producer,
		logger:   logger,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	FullName   string
	Email      string
	UserName   string
	Password   string
	Avatar     *File
	CoverImage *File
}

// LoginInput holds login credentials. One of UserName or Email is required.
type LoginInput struct {
	UserName string
	Email    string
	Password string
}

// --- Registration ---

// Register creates an account. The avatar is mandatory; the cover image is
// optional. Media uploaded before a failed insert are removed again.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (_ *domain.PublicUser, err error) {
	defer func() { observe("register", err) }()

	fullName := strings.TrimSpace(in.FullName)
	email := domain.NormalizeIdentifier(in.Email)
	userName := domain.NormalizeIdentifier(in.UserName)
	if fullName == "" || email == "" || userName == "" || strings.TrimSpace(in.Password) == "" {
		return nil, apperrors.InvalidInput("all fields are required")
	}
	if err := checkPasswordLength(in.Password); err != nil {
		return nil, err
	}

	_, err = s.users.FindByUserNameOrEmail(ctx, userName, email)
	switch {
	case err == nil:
		return nil, apperrors.Conflict(repository.DuplicateUserMessage)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	if in.Avatar == nil {
		return nil, apperrors.InvalidInput("avatar file is required")
	}

	var uploaded []string
	cleanup := func() {
		for _, key := range uploaded {
			s.deleteMedia(ctx, key)
		}
	}

	avatar, err := s.upload(ctx, folderAvatars, in.Avatar)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	uploaded = append(uploaded, avatar.Key)

	var coverURL string
	if in.CoverImage != nil {
		cover, err := s.upload(ctx, folderCovers, in.CoverImage)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("upload cover image: %w", err)
		}
		uploaded = append(uploaded, cover.Key)
		coverURL = cover.URL
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		cleanup()
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		UserName:     userName,
		Email:        email,
		FullName:     fullName,
		Avatar:       avatar.URL,
		CoverImage:   coverURL,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		cleanup()
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("user_name", user.UserName),
	)

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logPublishFailure(ctx, "user.registered", user.ID, err)
	}

	return user.Public(), nil
}

// --- Session lifecycle ---

// Login verifies credentials and starts a new session. A previous session's
// refresh token stops working.
func (s *UserService) Login(ctx context.Context, in LoginInput) (_ *domain.LoginResult, err error) {
	defer func() { observe("login", err) }()

	userName := domain.NormalizeIdentifier(in.UserName)
	email := domain.NormalizeIdentifier(in.Email)
	if userName == "" && email == "" {
		return nil, apperrors.InvalidInput("username or email is required")
	}

	user, err := s.users.FindByUserNameOrEmail(ctx, userName, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage("user does not exist")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.logger.WarnContext(ctx, "login rejected", slog.String("user_id", user.ID))
		return nil, apperrors.Unauthorized("invalid user credentials")
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))

	if err := s.producer.PublishUserLoggedIn(ctx, user.ID); err != nil {
		s.logPublishFailure(ctx, "user.logged_in", user.ID, err)
	}

	return &domain.LoginResult{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Logout clears the stored refresh token. Logging out without a session is
// not an error.
func (s *UserService) Logout(ctx context.Context, userID string) (err error) {
	defer func() { observe("logout", err) }()

	if err := s.sessions.ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID))

	if err := s.producer.PublishUserLoggedOut(ctx, userID); err != nil {
		s.logPublishFailure(ctx, "user.logged_out", userID, err)
	}
	return nil
}

// RefreshToken exchanges a refresh token for a new pair. The presented token
// must equal the stored one, so each token can be exchanged once.
func (s *UserService) RefreshToken(ctx context.Context, incoming string) (_ *domain.TokenPair, err error) {
	defer func() { observe("refresh", err) }()

	if incoming == "" {
		return nil, apperrors.Unauthorized("unauthorized request")
	}

	claims, err := s.tokens.ValidateRefreshToken(incoming)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token: " + err.Error())
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	stored, err := s.sessions.GetRefreshToken(ctx, user.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(incoming)) != 1 {
		s.logger.WarnContext(ctx, "refresh token reuse rejected", slog.String("user_id", user.ID))
		return nil, apperrors.Unauthorized("refresh token is expired or used")
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.producer.PublishTokenRefreshed(ctx, user.ID); err != nil {
		s.logPublishFailure(ctx, "user.token_refreshed", user.ID, err)
	}
	return pair, nil
}

// ResolveAccessToken maps an access token to its user. It backs the
// authentication middleware, so every failure is Unauthorized.
func (s *UserService) ResolveAccessToken(ctx context.Context, token string) (string, any, error) {
	claims, err := s.tokens.ValidateAccessToken(token)
	if err != nil {
		return "", nil, apperrors.Unauthorized("invalid access token")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", nil, apperrors.Unauthorized("invalid access token")
		}
		return "", nil, fmt.Errorf("resolve user: %w", err)
	}
	return user.ID, user.Public(), nil
}

func (s *UserService) startSession(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, user.UserName, user.Email, user.FullName)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// --- Account ---

func checkPasswordLength(password string) error {
	if len(password) > auth.MaxPasswordBytes {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}
	return nil
}

// ChangePassword replaces the password after checking the old one. The
// active session is kept.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	defer func() { observe("change_password", err) }()

	if strings.TrimSpace(newPassword) == "" {
		return apperrors.InvalidInput("new password is required")
	}
	if err := checkPasswordLength(newPassword); err != nil {
		return err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return apperrors.Unauthorized("invalid old password")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", userID))

	if err := s.producer.PublishPasswordChanged(ctx, userID); err != nil {
		s.logPublishFailure(ctx, "user.password_changed", userID, err)
	}
	return nil
}

// GetCurrentUser returns the public view of the user.
func (s *UserService) GetCurrentUser(ctx context.Context, userID string) (*domain.PublicUser, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

// UpdateAccount sets the full name and email.
func (s *UserService) UpdateAccount(ctx context.Context, userID, fullName, email string) (*domain.PublicUser, error) {
	fullName = strings.TrimSpace(fullName)
	email = domain.NormalizeIdentifier(email)
	if fullName == "" || email == "" {
		return nil, apperrors.InvalidInput("all fields are required")
	}

	user, err := s.users.UpdateAccount(ctx, userID, fullName, email)
	if err != nil {
		return nil, s.mapMissing(err, "update account")
	}

	if err := s.producer.PublishUserUpdated(ctx, user); err != nil {
		s.logPublishFailure(ctx, "user.updated", user.ID, err)
	}
	return user.Public(), nil
}

// UpdateAvatar replaces the avatar and removes the previous file.
func (s *UserService) UpdateAvatar(ctx context.Context, userID string, file *File) (*domain.PublicUser, error) {
	if file == nil {
		return nil, apperrors.InvalidInput("avatar file is required")
	}
	return s.replaceMedia(ctx, userID, folderAvatars, file,
		func(u *domain.User) string { return u.Avatar },
		s.users.UpdateAvatar,
	)
}

// UpdateCoverImage replaces the cover image and removes the previous file.
func (s *UserService) UpdateCoverImage(ctx context.Context, userID string, file *File) (*domain.PublicUser, error) {
	if file == nil {
		return nil, apperrors.InvalidInput("cover image file is required")
	}
	return s.replaceMedia(ctx, userID, folderCovers, file,
		func(u *domain.User) string { return u.CoverImage },
		s.users.UpdateCoverImage,
	)
}

func (s *UserService) replaceMedia(
	ctx context.Context,
	userID, folder string,
	file *File,
	current func(*domain.User) string,
	persist func(ctx context.Context, id, url string) (*domain.User, error),
) (*domain.PublicUser, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	oldURL := current(user)

	res, err := s.upload(ctx, folder, file)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", folder, err)
	}

	updated, err := persist(ctx, userID, res.URL)
	if err != nil {
		s.deleteMedia(ctx, res.Key)
		return nil, s.mapMissing(err, "update "+folder)
	}

	if oldURL != "" {
		if key := s.media.KeyFromURL(oldURL); key != "" {
			s.deleteMedia(ctx, key)
		}
	}

	if err := s.producer.PublishUserUpdated(ctx, updated); err != nil {
		s.logPublishFailure(ctx, "user.updated", updated.ID, err)
	}
	return updated.Public(), nil
}

// --- helpers ---

func (s *UserService) getUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, s.mapMissing(err, "get user")
	}
	return user, nil
}

func (s *UserService) mapMissing(err error, op string) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, apperrors.ErrNotFound):
		return apperrors.NotFoundMessage("user does not exist")
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (s *UserService) upload(ctx context.Context, folder string, f *File) (*storage.UploadResult, error) {
	return s.media.Upload(ctx, &storage.UploadInput{
		Folder:      folder,
		FileName:    f.Name,
		ContentType: f.ContentType,
		Body:        f.Reader,
		Size:        f.Size,
	})
}

// deleteMedia removes an object. Failures are logged and never surfaced.
func (s *UserService) deleteMedia(ctx context.Context, key string) {
	if err := s.media.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.WarnContext(ctx, "failed to delete media",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (s *UserService) logPublishFailure(ctx context.Context, topic, userID string, err error) {
	s.logger.WarnContext(ctx, "failed to publish event",
		slog.String("event", topic),
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
}

func outcomeOf(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	if status := apperrors.HTTPStatus(err); status < http.StatusInternalServerError {
		return outcomeRejected
	}
	return outcomeError
}
