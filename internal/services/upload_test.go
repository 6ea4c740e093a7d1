package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arnold/achievements-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProofObjectName(t *testing.T) {
	name, contentType, err := ProofObjectName("friday", "Photo.JPG", 1024)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "proofs/friday/"))
	assert.True(t, strings.HasSuffix(name, ".jpg"))
	assert.Equal(t, "image/jpeg", contentType)

	other, _, err := ProofObjectName("friday", "photo.jpg", 1024)
	require.NoError(t, err)
	assert.NotEqual(t, name, other)
}

func TestProofObjectName_Rejects(t *testing.T) {
	_, _, err := ProofObjectName("friday", "notes.txt", 10)
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, _, err = ProofObjectName("friday", "big.png", MaxImageSize+1)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestLocalUploader(t *testing.T) {
	dir := t.TempDir()
	u := NewLocalUploader(dir, "https://example.com/")

	url, err := u.Upload(context.Background(), "proofs/sunday/a.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/uploads/proofs/sunday/a.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "proofs", "sunday", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestNoUploader(t *testing.T) {
	_, err := NoUploader{}.Upload(context.Background(), "x.png", "image/png", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUploadUnavailable)
}

func TestPushService_DisabledIsNoop(t *testing.T) {
	p := NewPushService(nil, zap.NewNop())
	assert.False(t, p.Enabled())
	p.NotifyCompleted(context.Background(), models.Friday, models.Achievement{ID: "a"})

	var nilService *PushService
	assert.False(t, nilService.Enabled())
	assert.Equal(t, "achievements-saturday", Topic(models.Saturday))
}
