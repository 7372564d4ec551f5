package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_StaleResultsDiscarded(t *testing.T) {
	var l Loader[string]

	first := l.Start(context.Background())
	second := l.Start(context.Background())

	assert.ErrorIs(t, first.Ctx.Err(), context.Canceled, "starting a new fetch cancels the previous one")
	assert.NoError(t, second.Ctx.Err())

	_, ok := l.Finish(first.Seq, live("old"))
	assert.False(t, ok)

	r, ok := l.Finish(second.Seq, live("new"))
	require.True(t, ok)
	assert.Equal(t, "new", r.Data)
	assert.ErrorIs(t, second.Ctx.Err(), context.Canceled, "context is released after finishing")
}

func TestLoader_Cancel(t *testing.T) {
	var l Loader[int]
	ticket := l.Start(context.Background())
	l.Cancel()

	assert.Error(t, ticket.Ctx.Err())
	assert.False(t, l.IsCurrent(ticket.Seq))
	_, ok := l.Finish(ticket.Seq, live(1))
	assert.False(t, ok)
}

func TestLoader_Run(t *testing.T) {
	var l Loader[int]
	r, ok := l.Run(context.Background(), func(ctx context.Context) Result[int] {
		require.NoError(t, ctx.Err())
		return live(42)
	})
	require.True(t, ok)
	assert.Equal(t, 42, r.Data)
	assert.Equal(t, uint64(1), l.Seq())
}
