package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/event"
	storagemem "github.com/vidtube/backend/internal/storage/memory"
	pkgkafka "github.com/vidtube/backend/pkg/kafka"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) FindByUserNameOrEmail(ctx context.Context, userName, email string) (*domain.User, error) {
	args := m.Called(ctx, userName, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (*domain.User, error) {
	args := m.Called(ctx, id, fullName, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockUserRepository) UpdateAvatar(ctx context.Context, id, url string) (*domain.User, error) {
	args := m.Called(ctx, id, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdateCoverImage(ctx context.Context, id, url string) (*domain.User, error) {
	args := m.Called(ctx, id, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// --- Mock Session Store ---

type mockSessionStore struct {
	mock.Mock
}

func (m *mockSessionStore) SetRefreshToken(ctx context.Context, userID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func (m *mockSessionStore) ClearRefreshToken(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockSessionStore) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// --- Mock Channel Repository ---

type mockChannelRepository struct {
	mock.Mock
}

func (m *mockChannelRepository) GetChannelProfile(ctx context.Context, userName, viewerID string) (*domain.ChannelProfile, error) {
	args := m.Called(ctx, userName, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChannelProfile), args.Error(1)
}

func (m *mockChannelRepository) GetWatchHistory(ctx context.Context, userID string) ([]domain.WatchedVideo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WatchedVideo), args.Error(1)
}

func (m *mockChannelRepository) AppendWatchHistory(ctx context.Context, userID, videoID string) error {
	args := m.Called(ctx, userID, videoID)
	return args.Error(0)
}

// --- Recording publisher ---

type recordingPublisher struct {
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// --- Test Helpers ---

const (
	testAccessSecret  = "access-secret-for-tests-0123456789abcdef"
	testRefreshSecret = "refresh-secret-for-tests-0123456789abcdef"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer(testAccessSecret, testRefreshSecret, 15*time.Minute, 24*time.Hour)
}

type fixture struct {
	users     *mockUserRepository
	sessions  *mockSessionStore
	media     *storagemem.Storage
	publisher *recordingPublisher
	hasher    *auth.PasswordHasher
	tokens    *auth.TokenIssuer
	svc       *UserService
}

func newFixture() *fixture {
	f := &fixture{
		users:     new(mockUserRepository),
		sessions:  new(mockSessionStore),
		media:     storagemem.New(),
		publisher: &recordingPublisher{},
		hasher:    auth.NewPasswordHasher(4),
		tokens:    newTestIssuer(),
	}
	logger := newTestLogger()
	f.svc = NewUserService(f.users, f.sessions, f.tokens, f.hasher, f.media,
		event.NewProducer(f.publisher, logger), logger)
	return f
}

func (f *fixture) existingUser(password string) *domain.User {
	hash, err := f.hasher.Hash(password)
	if err != nil {
		panic(err)
	}
	return &domain.User{
		ID:           "6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f",
		UserName:     "alice",
		Email:        "alice@x.com",
		FullName:     "Alice Liddell",
		Avatar:       storagemem.BaseURL + "/avatars/old.png",
		PasswordHash: hash,
	}
}

func file(name, body string) *File {
	return &File{Name: name, ContentType: "image/png", Reader: strings.NewReader(body), Size: int64(len(body))}
}

// failingReader makes uploads fail.
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

var _ io.Reader = failingReader{}
