package apiservice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgapi/go-apiservice/pkg/apiservice"
)

func TestStream_Collect(t *testing.T) {
	t.Parallel()
	values, err := apiservice.Values(context.Background(), apiservice.SourceCache, 1, 2, 3).Collect()
	require.NoError(t, err)
	assert.Equal(t, []apiservice.Emission[int]{
		{Value: 1, Source: apiservice.SourceCache},
		{Value: 2, Source: apiservice.SourceCache},
		{Value: 3, Source: apiservice.SourceCache},
	}, values)
}

func TestStream_Last(t *testing.T) {
	t.Parallel()
	v, err := apiservice.Values(context.Background(), apiservice.SourceNetwork, "old", "new").Last()
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	_, err = apiservice.Values[string](context.Background(), apiservice.SourceNetwork).Last()
	assert.ErrorIs(t, err, apiservice.ErrEmptyStream)
}

func TestStream_Failed(t *testing.T) {
	t.Parallel()
	errFoo := errors.New("foo")

	values, err := apiservice.Failed[int](errFoo).Collect()
	assert.Empty(t, values)
	assert.ErrorIs(t, err, errFoo)

	v, err := apiservice.Failed[int](errFoo).Last()
	assert.Equal(t, 0, v)
	assert.ErrorIs(t, err, errFoo)
}

func TestStream_Close(t *testing.T) {
	t.Parallel()
	stream := apiservice.Values(context.Background(), apiservice.SourceNetwork, 1, 2, 3)

	e, ok := stream.Next()
	require.True(t, ok)
	assert.Equal(t, 1, e.Value)

	stream.Close()
	_, ok = stream.Next()
	assert.False(t, ok)
	if err := stream.Err(); err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	// Close can be called multiple times
	stream.Close()
}

func TestStream_ParentContextCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	stream := apiservice.Values(ctx, apiservice.SourceNetwork, 1, 2, 3)
	cancel()

	// Some values may be received before the cancellation
	values, err := stream.Collect()
	assert.LessOrEqual(t, len(values), 3)
	if len(values) < 3 {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestSource_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "cache", apiservice.SourceCache.String())
	assert.Equal(t, "network", apiservice.SourceNetwork.String())
	assert.Equal(t, "recovery", apiservice.SourceRecovery.String())
	assert.Equal(t, "Source(9)", apiservice.Source(9).String())
}
