package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nehaa3012/LMS/internal/config"
	"github.com/nehaa3012/LMS/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageUploadAndDelete(t *testing.T) {
	root := t.TempDir()
	s := NewStorageService(t.Context(), &config.StorageConfig{Type: util.StorageLocal, LocalPath: root})

	url, err := s.UploadBytes(t.Context(), "certificates/CERT-1.png", []byte("png"), util.MimePNG)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/certificates/CERT-1.png", url)

	data, err := os.ReadFile(filepath.Join(root, "certificates", "CERT-1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	require.NoError(t, s.Delete(t.Context(), "certificates/CERT-1.png"))
	assert.NoFileExists(t, filepath.Join(root, "certificates", "CERT-1.png"))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	s := &StorageService{Provider: &LocalStorageProvider{Root: t.TempDir()}}
	_, err := s.UploadBytes(t.Context(), "../escape.png", []byte("x"), util.MimePNG)
	assert.ErrorIs(t, err, util.ErrValidation)
}
