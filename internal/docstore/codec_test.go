package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 8, time.UTC)
	doc, err := Encode(widget{ID: "w1", Name: "gear", Tags: []string{"x"}, CreatedAt: at})
	require.NoError(t, err)

	assert.Equal(t, "w1", doc.ID())
	assert.Equal(t, []interface{}{"x"}, doc["tags"])
	assert.Equal(t, at.Format(time.RFC3339Nano), doc["created_at"])

	back, err := Decode[widget](doc)
	require.NoError(t, err)
	assert.Equal(t, "gear", back.Name)
	assert.True(t, at.Equal(back.CreatedAt))
}

func TestSliceCursor(t *testing.T) {
	ctx := context.Background()
	cur := NewSliceCursor([]Document{{"id": "a", "name": "one"}, {"id": "b", "name": "two"}})

	out, err := All[widget](ctx, cur)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "two", out[1].Name)
}

func TestSliceCursorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cur := NewSliceCursor([]Document{{"id": "a"}})
	assert.False(t, cur.Next(ctx))
	assert.ErrorIs(t, cur.Err(), context.Canceled)
}

func TestUnavailableWrapping(t *testing.T) {
	err := Unavailable("find", context.DeadlineExceeded)
	assert.True(t, IsUnavailable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Same(t, err, Unavailable("other", err))
	assert.Nil(t, Unavailable("x", nil))
}
