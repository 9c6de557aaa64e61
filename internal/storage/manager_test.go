package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dlvideo/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	base := t.TempDir()
	m := NewManager(&model.StorageConfig{
		DownloadDir:     filepath.Join(base, "downloads"),
		UploadDir:       filepath.Join(base, "uploads"),
		WorkDir:         filepath.Join(base, "work"),
		MaxVideoSizeMB:  100,
		CleanupInterval: 3600,
		FileTTLSeconds:  3600,
		SweepMaxAge:     3600,
	})
	require.NoError(t, m.EnsureDirs())
	return m
}

func TestEnsureDirsCreatesAll(t *testing.T) {
	m := testManager(t)

	for _, dir := range []string{m.cfg.DownloadDir, m.cfg.UploadDir, m.cfg.WorkDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestTrackAndGetFile(t *testing.T) {
	m := testManager(t)

	path := filepath.Join(m.cfg.DownloadDir, "t1.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

	m.Track("t1", &ServedFile{Filename: "clip.mp4", FilePath: path, Size: 4})

	got := m.GetFile("t1")
	require.NotNil(t, got)
	assert.Equal(t, "clip.mp4", got.Filename)
	assert.Equal(t, "t1", got.ID)
	assert.True(t, got.ExpiresAt.After(time.Now()))

	assert.Nil(t, m.GetFile("unknown"))
}

func TestRemoveDeletesFileAndWorkDir(t *testing.T) {
	m := testManager(t)

	workDir, err := m.TaskDir("t1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "scratch"), []byte("x"), 0644))

	path := filepath.Join(m.cfg.DownloadDir, "t1.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	m.Track("t1", &ServedFile{Filename: "clip.mp4", FilePath: path})

	m.Remove("t1")

	assert.Nil(t, m.GetFile("t1"))
	assert.NoFileExists(t, path)
	assert.NoDirExists(t, workDir)
}

func TestValidateFileSize(t *testing.T) {
	m := testManager(t)

	assert.True(t, m.ValidateFileSize(100*1024*1024))
	assert.False(t, m.ValidateFileSize(100*1024*1024+1))
}

func TestSweepStaleRemovesOldEntriesOnly(t *testing.T) {
	m := testManager(t)

	oldFile := filepath.Join(m.cfg.DownloadDir, "old.mp4")
	require.NoError(t, os.WriteFile(oldFile, []byte("x"), 0644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, past, past))

	freshFile := filepath.Join(m.cfg.DownloadDir, "fresh.mp4")
	require.NoError(t, os.WriteFile(freshFile, []byte("x"), 0644))

	m.SweepStale()

	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, freshFile)
}

func TestDownloadStemAndUploadPath(t *testing.T) {
	m := testManager(t)

	assert.Equal(t, filepath.Join(m.cfg.DownloadDir, "abc"), m.DownloadStem("abc"))
	assert.Equal(t, filepath.Join(m.cfg.UploadDir, "u1.mp3"), m.UploadPath("u1", ".mp3"))
}
