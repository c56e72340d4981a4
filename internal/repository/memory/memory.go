// Package memory provides in-process repositories used by tests and local
// development without PostgreSQL.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/repository"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

// Video is a seeded video row.
type Video struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	VideoFile   string
	Thumbnail   string
	Duration    float64
	Views       int64
	IsPublished bool
	CreatedAt   time.Time
}

// Store implements repository.UserRepository, repository.SessionStore and
// repository.ChannelRepository on maps guarded by a mutex.
type Store struct {
	mu            sync.RWMutex
	users         map[string]*domain.User
	videos        map[string]Video
	subscriptions map[[2]string]struct{} // {subscriber, channel}
	history       map[string][]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:         make(map[string]*domain.User),
		videos:        make(map[string]Video),
		subscriptions: make(map[[2]string]struct{}),
		history:       make(map[string][]string),
	}
}

func duplicate() error {
	return apperrors.Conflict(repository.DuplicateUserMessage)
}

func clone(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (s *Store) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.UserName == u.UserName || existing.Email == u.Email {
			return duplicate()
		}
	}
	s.users[u.ID] = clone(u)
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return clone(u), nil
}

func (s *Store) FindByUserNameOrEmail(_ context.Context, userName, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.User
	for _, u := range s.users {
		if (userName != "" && u.UserName == userName) || (email != "" && u.Email == email) {
			if found == nil || u.CreatedAt.Before(found.CreatedAt) {
				found = u
			}
		}
	}
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	return clone(found), nil
}

func (s *Store) update(id string, fn func(u *domain.User) error) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	next := clone(u)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	s.users[id] = next
	return clone(next), nil
}

func (s *Store) UpdateAccount(_ context.Context, id, fullName, email string) (*domain.User, error) {
	return s.update(id, func(u *domain.User) error {
		for otherID, other := range s.users {
			if otherID != id && other.Email == email {
				return duplicate()
			}
		}
		u.FullName = fullName
		u.Email = email
		return nil
	})
}

func (s *Store) UpdatePassword(_ context.Context, id, passwordHash string) error {
	_, err := s.update(id, func(u *domain.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
	return err
}

func (s *Store) UpdateAvatar(_ context.Context, id, url string) (*domain.User, error) {
	return s.update(id, func(u *domain.User) error {
		u.Avatar = url
		return nil
	})
}

func (s *Store) UpdateCoverImage(_ context.Context, id, url string) (*domain.User, error) {
	return s.update(id, func(u *domain.User) error {
		u.CoverImage = url
		return nil
	})
}

func (s *Store) SetRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.RefreshToken = token
	return nil
}

func (s *Store) ClearRefreshToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		u.RefreshToken = ""
	}
	return nil
}

func (s *Store) GetRefreshToken(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return u.RefreshToken, nil
}

// AddVideo seeds a video.
func (s *Store) AddVideo(v Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[v.ID] = v
}

// Subscribe records that subscriberID follows channelID.
func (s *Store) Subscribe(subscriberID, channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[[2]string{subscriberID, channelID}] = struct{}{}
}

func (s *Store) GetChannelProfile(_ context.Context, userName, viewerID string) (*domain.ChannelProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owner *domain.User
	for _, u := range s.users {
		if u.UserName == userName {
			owner = u
			break
		}
	}
	if owner == nil {
		return nil, apperrors.ErrNotFound
	}

	p := &domain.ChannelProfile{
		ID:         owner.ID,
		FullName:   owner.FullName,
		UserName:   owner.UserName,
		Email:      owner.Email,
		Avatar:     owner.Avatar,
		CoverImage: owner.CoverImage,
		CreatedAt:  owner.CreatedAt,
	}
	for pair := range s.subscriptions {
		if pair[1] == owner.ID {
			p.SubscribersCount++
			if pair[0] == viewerID {
				p.IsSubscribed = true
			}
		}
		if pair[0] == owner.ID {
			p.ChannelsSubscribedToCount++
		}
	}
	return p, nil
}

func (s *Store) GetWatchHistory(_ context.Context, userID string) ([]domain.WatchedVideo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.WatchedVideo, 0, len(s.history[userID]))
	for _, videoID := range s.history[userID] {
		v, ok := s.videos[videoID]
		if !ok {
			continue
		}
		owner, ok := s.users[v.OwnerID]
		if !ok {
			continue
		}
		out = append(out, domain.WatchedVideo{
			ID:          v.ID,
			Title:       v.Title,
			Description: v.Description,
			VideoFile:   v.VideoFile,
			Thumbnail:   v.Thumbnail,
			Duration:    v.Duration,
			Views:       v.Views,
			IsPublished: v.IsPublished,
			CreatedAt:   v.CreatedAt,
			Owner: domain.VideoOwner{
				FullName: owner.FullName,
				UserName: owner.UserName,
				Avatar:   owner.Avatar,
			},
		})
	}
	return out, nil
}

func (s *Store) AppendWatchHistory(_ context.Context, userID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return apperrors.ErrNotFound
	}
	if _, ok := s.videos[videoID]; !ok {
		return apperrors.ErrNotFound
	}
	s.history[userID] = append(s.history[userID], videoID)
	return nil
}
