package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"musicvault/internal/uploads"
)

func writeTempFile(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("upload data"), 0o644))

	return path
}

func TestSweep_RemovesExpiredEntries(t *testing.T) {
	dir := t.TempDir()
	old := writeTempFile(t, dir, "old.part")
	fresh := writeTempFile(t, dir, "fresh.part")

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	service := NewService(uploads.New(), []string{dir}, time.Hour)
	require.NoError(t, service.Sweep())

	require.NoFileExists(t, old)
	require.FileExists(t, fresh)
}

func TestSweep_SkippedWhileUploadActive(t *testing.T) {
	dir := t.TempDir()
	stray := writeTempFile(t, dir, "stray.part")

	registry := uploads.New()
	registry.Register("user-1", filepath.Join(dir, "other-upload"), "track")

	// Any active upload anywhere gates the whole sweep
	service := NewService(registry, []string{dir}, 0)
	require.NoError(t, service.Sweep())
	require.FileExists(t, stray)

	registry.UnregisterAllForUser("user-1")

	require.NoError(t, service.Sweep())
	require.NoFileExists(t, stray)
}

func TestSweep_RemovesDirectories(t *testing.T) {
	dir := t.TempDir()
	uploadDir := filepath.Join(dir, "upload-123")
	require.NoError(t, os.Mkdir(uploadDir, 0o755))
	writeTempFile(t, uploadDir, "chunk-0")

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(uploadDir, past, past))

	service := NewService(uploads.New(), []string{dir}, time.Hour)
	require.NoError(t, service.Sweep())

	require.NoDirExists(t, uploadDir)
}

func TestSweep_MissingTempPathIgnored(t *testing.T) {
	service := NewService(uploads.New(), []string{filepath.Join(t.TempDir(), "does-not-exist")}, time.Hour)
	require.NoError(t, service.Sweep())
}
