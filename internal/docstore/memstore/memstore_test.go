package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/docstore/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store { return New() })
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s := New()
	c := s.Collection("things")
	_ = s.Close()

	_, err := c.FindOne(context.Background(), docstore.Filter{"id": "a"})
	assert.True(t, docstore.IsUnavailable(err))
	assert.True(t, docstore.IsUnavailable(s.Ping(context.Background())))
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	c := New().Collection("things")
	_ = c.InsertOne(ctx, docstore.Document{"id": "a", "name": "x"})

	doc, _ := c.FindOne(ctx, docstore.Filter{"id": "a"})
	doc["name"] = "mutated"

	again, _ := c.FindOne(ctx, docstore.Filter{"id": "a"})
	assert.Equal(t, "x", again["name"])
}
