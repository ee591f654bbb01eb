package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func TestQueuePublishDrain(t *testing.T) {
	q := NewQueue(4)
	require.NoError(t, q.TryPublish(schema.Execution{ID: 1}))
	require.NoError(t, q.TryPublish(schema.Execution{ID: 2}))
	assert.Equal(t, 2, q.Len())

	drained := q.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, uint64(1), drained[0].ID)
	assert.Equal(t, uint64(2), drained[1].ID)
	assert.Empty(t, q.Drain())
}

func TestQueueFullDoesNotBlock(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(schema.Execution{ID: 1}))
	require.ErrorIs(t, q.TryPublish(schema.Execution{ID: 2}), ErrQueueFull)

	// draining frees capacity again
	require.Len(t, q.Drain(), 1)
	require.NoError(t, q.TryPublish(schema.Execution{ID: 3}))
}

func TestQueueClose(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.TryPublish(schema.Execution{ID: 1}))
	q.Close()
	q.Close()

	require.ErrorIs(t, q.TryPublish(schema.Execution{ID: 2}), ErrQueueClosed)
	drained := q.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, uint64(1), drained[0].ID)
}

func TestQueueDefaultCapacity(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.TryPublish(schema.Execution{ID: 1}))
	require.ErrorIs(t, q.TryPublish(schema.Execution{ID: 2}), ErrQueueFull)
}
