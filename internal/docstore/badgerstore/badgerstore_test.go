package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/docstore/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		s, err := Open(Options{InMemory: true})
		require.NoError(t, err)
		return s
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Options{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.Collection("users").InsertOne(ctx, docstore.Document{"id": "u1", "email": "a@b.test"}))
	require.NoError(t, s.Close())

	s, err = Open(Options{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	doc, err := s.Collection("users").FindOne(ctx, docstore.Filter{"email": "a@b.test"})
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.ID())
}

func TestCollectionsDoNotShareKeys(t *testing.T) {
	ctx := context.Background()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	// "ab" + id "c" must not collide with "a" + id "bc"
	require.NoError(t, s.Collection("ab").InsertOne(ctx, docstore.Document{"id": "c"}))
	require.NoError(t, s.Collection("a").InsertOne(ctx, docstore.Document{"id": "bc"}))

	n, err := s.Collection("a").Count(ctx, docstore.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	c := s.Collection("things")
	require.NoError(t, s.Close())

	_, err = c.Count(context.Background(), docstore.Filter{})
	assert.True(t, docstore.IsUnavailable(err))
	assert.True(t, docstore.IsUnavailable(s.Ping(context.Background())))
}
