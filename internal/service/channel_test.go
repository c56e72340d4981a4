package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/domain"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

func TestGetChannelProfile(t *testing.T) {
	repo := new(mockChannelRepository)
	svc := NewChannelService(repo, newTestLogger())
	ctx := context.Background()

	profile := &domain.ChannelProfile{ID: "u-2", UserName: "bob", SubscribersCount: 3, IsSubscribed: true}
	repo.On("GetChannelProfile", ctx, "bob", "u-1").Return(profile, nil)

	got, err := svc.GetChannelProfile(ctx, " Bob ", "u-1")

	require.NoError(t, err)
	assert.Equal(t, int64(3), got.SubscribersCount)
	assert.True(t, got.IsSubscribed)
	repo.AssertExpectations(t)
}

func TestGetChannelProfile_Missing(t *testing.T) {
	repo := new(mockChannelRepository)
	svc := NewChannelService(repo, newTestLogger())
	ctx := context.Background()

	repo.On("GetChannelProfile", ctx, "ghost", "").Return(nil, apperrors.ErrNotFound)

	_, err := svc.GetChannelProfile(ctx, "ghost", "")
	assertAppError(t, err, 404, "channel does not exist")

	_, err = svc.GetChannelProfile(ctx, "  ", "")
	assertAppError(t, err, 400, "username is missing")
}

func TestGetWatchHistory(t *testing.T) {
	repo := new(mockChannelRepository)
	svc := NewChannelService(repo, newTestLogger())
	ctx := context.Background()

	history := []domain.WatchedVideo{
		{ID: "v-1", Owner: domain.VideoOwner{UserName: "bob"}},
		{ID: "v-2", Owner: domain.VideoOwner{UserName: "carol"}},
	}
	repo.On("GetWatchHistory", ctx, "u-1").Return(history, nil)
	repo.On("GetWatchHistory", ctx, "u-2").Return(nil, errors.New("timeout"))

	got, err := svc.GetWatchHistory(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"v-1", "v-2"}, []string{got[0].ID, got[1].ID})

	_, err = svc.GetWatchHistory(ctx, "u-2")
	assert.Error(t, err)
}

func TestRecordWatch(t *testing.T) {
	repo := new(mockChannelRepository)
	svc := NewChannelService(repo, newTestLogger())
	ctx := context.Background()

	repo.On("AppendWatchHistory", ctx, "u-1", "v-1").Return(nil)
	repo.On("AppendWatchHistory", ctx, "u-1", "v-missing").Return(apperrors.ErrNotFound)

	require.NoError(t, svc.RecordWatch(ctx, "u-1", "v-1"))

	err := svc.RecordWatch(ctx, "u-1", "v-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
