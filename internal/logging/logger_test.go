package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func resetLogging(t *testing.T) {
	t.Helper()
	CloseAll()
	optsMu.Lock()
	opts = Options{}
	optsMu.Unlock()
	t.Cleanup(CloseAll)
}

func TestAllCategoriesLog(t *testing.T) {
	resetLogging(t)
	tempDir := t.TempDir()

	require.NoError(t, Initialize(tempDir, Options{DebugMode: true, Level: "debug"}))
	assert.True(t, IsDebugMode())

	categories := []Category{
		CategoryBoot, CategoryCatalog, CategoryPairing, CategorySequencer,
		CategoryDatafile, CategorySession, CategoryDriver, CategoryWatch,
	}
	for _, cat := range categories {
		Get(cat).Info("test message", zap.String("category", string(cat)))
	}
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(tempDir, "logs"))
	require.NoError(t, err)

	found := make(map[string]bool)
	for _, e := range entries {
		for _, cat := range categories {
			if strings.HasSuffix(e.Name(), "_"+string(cat)+".log") {
				found[string(cat)] = true
			}
		}
	}
	for _, cat := range categories {
		assert.True(t, found[string(cat)], "missing log file for %s", cat)
	}
}

func TestLogLinesAreJSON(t *testing.T) {
	resetLogging(t)
	tempDir := t.TempDir()

	require.NoError(t, Initialize(tempDir, Options{DebugMode: true, Level: "info"}))
	Get(CategorySequencer).Info("round advanced", zap.Int("round", 2))
	Get(CategorySequencer).Debug("filtered by level")
	CloseAll()

	matches, err := filepath.Glob(filepath.Join(tempDir, "logs", "*_sequencer.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, `"msg":"round advanced"`)
	assert.Contains(t, content, `"round":2`)
	assert.Contains(t, content, `"logger":"sequencer"`)
	assert.NotContains(t, content, "filtered by level")
}

func TestDebugModeOffWritesNothing(t *testing.T) {
	resetLogging(t)
	tempDir := t.TempDir()

	require.NoError(t, Initialize(tempDir, Options{DebugMode: false}))
	assert.False(t, IsDebugMode())
	Get(CategoryBoot).Info("should not be written")

	_, err := os.Stat(filepath.Join(tempDir, "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestCategoryFilter(t *testing.T) {
	resetLogging(t)
	tempDir := t.TempDir()

	require.NoError(t, Initialize(tempDir, Options{
		DebugMode:  true,
		Categories: map[string]bool{"driver": false, "pairing": true},
	}))

	assert.False(t, IsCategoryEnabled(CategoryDriver))
	assert.True(t, IsCategoryEnabled(CategoryPairing))
	assert.True(t, IsCategoryEnabled(CategoryWatch), "unlisted categories default to enabled")
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	resetLogging(t)
	assert.Error(t, Initialize("", Options{DebugMode: true}))
}
