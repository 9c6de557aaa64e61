package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	r.Create("t1", "http://example.com/v", "video")

	got, ok := r.Get("t1")
	require.True(t, ok)
	assert.Equal(t, StatusQueued, got.Status)
	assert.False(t, got.Ready())

	r.Update("t1", func(task *Task) {
		task.Status = StatusCompleted
		task.Progress = 100
		task.Filename = "clip.mp4"
	})

	got, ok = r.Get("t1")
	require.True(t, ok)
	assert.True(t, got.Ready())
	assert.Equal(t, 100.0, got.Progress)

	r.Delete("t1")
	_, ok = r.Get("t1")
	assert.False(t, ok)
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Create("t1", "u", "video")

	got, _ := r.Get("t1")
	got.Status = StatusFailed

	// Mutating the copy must not leak into the registry.
	fresh, _ := r.Get("t1")
	assert.Equal(t, StatusQueued, fresh.Status)
}

func TestRegistryUpdateUnknownIDIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Update("missing", func(task *Task) {
		t.Fatal("update callback must not run for unknown ids")
	})
}

func TestReporterForwardsProgress(t *testing.T) {
	r := NewRegistry()
	r.Create("t1", "u", "audio")

	rep := r.Reporter("t1")
	rep.Update(40, StatusDownloading, "Stream downloaded")

	got, ok := r.Get("t1")
	require.True(t, ok)
	assert.Equal(t, 40.0, got.Progress)
	assert.Equal(t, StatusDownloading, got.Status)
	assert.Equal(t, "Stream downloaded", got.Message)
}

func TestTaskReady(t *testing.T) {
	assert.False(t, Task{Status: StatusQueued}.Ready())
	assert.False(t, Task{Status: StatusDownloading}.Ready())
	assert.False(t, Task{Status: StatusProcessing}.Ready())
	assert.True(t, Task{Status: StatusCompleted}.Ready())
	assert.True(t, Task{Status: StatusFailed}.Ready())
}
