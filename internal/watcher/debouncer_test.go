package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(path string, op Operation) FileEvent {
	return FileEvent{Path: path, Operation: op, Timestamp: time.Now()}
}

func collectBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_EmitsAfterWindow(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(event("report.pdf", OpCreate))

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "report.pdf", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_CoalescesCreateModify(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(event("report.pdf", OpCreate))
	d.Add(event("report.pdf", OpModify))
	d.Add(event("report.pdf", OpModify))

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation, "file is still new")
}

func TestDebouncer_CreateDeleteCancelsOut(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(event("ghost.pdf", OpCreate))
	d.Add(event("ghost.pdf", OpDelete))
	d.Add(event("real.pdf", OpCreate))

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "real.pdf", batch[0].Path)
}

func TestDebouncer_ModifyDeleteBecomesDelete(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(event("report.pdf", OpModify))
	d.Add(event("report.pdf", OpDelete))

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpDelete, batch[0].Operation)
}

func TestDebouncer_DeleteCreateBecomesModify(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(event("report.pdf", OpDelete))
	d.Add(event("report.pdf", OpCreate))

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation, "file was replaced")
}

func TestDebouncer_SeparatePathsStaySeparate(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(event("a.pdf", OpCreate))
	d.Add(event("b.pdf", OpCreate))

	batch := collectBatch(t, d)
	assert.Len(t, batch, 2)
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	d.Stop()
	d.Stop()

	// Adds after stop are dropped, not panics.
	d.Add(event("late.pdf", OpCreate))

	_, ok := <-d.Output()
	assert.False(t, ok, "output channel should be closed")
}
