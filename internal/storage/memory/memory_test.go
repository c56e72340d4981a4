package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

func TestStorage_UploadDelete(t *testing.T) {
	s := New()

	res, err := s.Upload(context.Background(), &storage.UploadInput{
		Folder:   "avatars",
		FileName: "a.png",
		Body:     strings.NewReader("png-bytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, res.Key, s.KeyFromURL(res.URL))
	data, ok := s.Object(res.Key)
	require.True(t, ok)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.Delete(context.Background(), res.Key))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, []string{res.Key}, s.Deleted())
}

func TestStorage_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Upload(ctx, &storage.UploadInput{Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, context.Canceled)
}
