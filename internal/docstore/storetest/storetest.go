// Package storetest holds the contract suite every docstore backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) docstore.Store

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s docstore.Store)
	}{
		{"InsertAndFindOne", testInsertAndFindOne},
		{"FindSortsWithIDTieBreak", testFindSorts},
		{"FindReturnsSnapshot", testFindSnapshot},
		{"FilterThroughArrays", testArrayFilter},
		{"PushPullSetElem", testArrayMutations},
		{"ClearIfAndRatio", testClearIfAndRatio},
		{"UpdateWithoutMatch", testUpdateWithoutMatch},
		{"UpdateMany", testUpdateMany},
		{"ConcurrentPushesAllLand", testConcurrentPush},
		{"DeleteAndCount", testDeleteAndCount},
		{"ActiveScope", testActiveScope},
		{"RejectsIDMutation", testRejectsIDMutation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

func ts(sec int) string {
	return time.Date(2025, 1, 1, 0, 0, sec, 0, time.UTC).Format(time.RFC3339Nano)
}

func testInsertAndFindOne(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := s.Collection("things")

	require.NoError(t, c.InsertOne(ctx, docstore.Document{"id": "a", "owner": "u1", "n": 1}))

	doc, err := c.FindOne(ctx, docstore.Filter{"id": "a", "owner": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "a", doc.ID())
	assert.Equal(t, float64(1), doc["n"])

	_, err = c.FindOne(ctx, docstore.Filter{"id": "a", "owner": "u2"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	err = c.InsertOne(ctx, docstore.Document{"id": "a"})
	assert.ErrorIs(t, err, docstore.ErrDuplicate)

	err = c.InsertOne(ctx, docstore.Document{"owner": "u1"})
	assert.ErrorIs(t, err, docstore.ErrMissingID)

	// Collections are isolated
	_, err = s.Collection("others").FindOne(ctx, docstore.Filter{"id": "a"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testFindSorts(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := s.Collection("things")

	for _, d := range []docstore.Document{
		{"id": "c", "owner": "u1", "updated_at": ts(5)},
		{"id": "a", "owner": "u1", "updated_at": ts(5)},
		{"id": "b", "owner": "u1", "updated_at": ts(9)},
		{"id": "d", "owner": "u2", "updated_at": ts(7)},
	} {
		require.NoError(t, c.InsertOne(ctx, d))
	}

	cur, err := c.Find(ctx, docstore.Filter{"owner": "u1"}, docstore.FindOptions{
		Sort: []docstore.SortKey{docstore.Desc("updated_at")},
	})
	require.NoError(t, err)
	docs, err := docstore.All[docstore.Document](ctx, cur)
	require.NoError(t, err)

	require.Len(t, docs, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{docs[0].ID(), docs[1].ID(), docs[2].ID()})

	limited, err := docstore.FindAll[docstore.Document](ctx, c, docstore.Filter{}, docstore.FindOptions{
		Sort:  []docstore.SortKey{docstore.Asc("updated_at")},
		Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "a", limited[0].ID())
	assert.Equal(t, "c", limited[1].ID())
}

func testArrayFilter(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := s.Collection("sessions")

	require.NoError(t, c.InsertOne(ctx, docstore.Document{
		"id": "s1", "user_id": "u1",
		"tabs": []interface{}{map[string]interface{}{"id": "t1"}, map[string]interface{}{"id": "t2"}},
	}))
	require.NoError(t, c.InsertOne(ctx, docstore.Document{
		"id": "s2", "user_id": "u1", "tabs": []interface{}{},
	}))

	doc, err := c.FindOne(ctx, docstore.Filter{"user_id": "u1", "tabs.id": "t2"})
	require.NoError(t, err)
	assert.Equal(t, "s1", doc.ID())

	_, err = c.FindOne(ctx, docstore.Filter{"user_id": "u1", "tabs.id": "t9"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	n, err := c.Count(ctx, docstore.Filter{"missing_field": nil})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testArrayMutations(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := s.Collection("sessions")
	require.NoError(t, c.InsertOne(ctx, docstore.Document{"id": "s1", "tabs": []interface{}{}}))

	for i, u := range []string{"https://a.test", "https://b.test", "https://c.test"} {
		res, err := c.UpdateOne(ctx, docstore.Filter{"id": "s1"}, docstore.NewMutation().
			Push("tabs", map[string]interface{}{"id": fmt.Sprintf("t%d", i), "url": u, "position": map[string]interface{}{"x": 0, "y": 0}}))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Matched)
		assert.Equal(t, 1, res.Modified)
	}

	res, err := c.UpdateOne(ctx, docstore.Filter{"id": "s1", "tabs.id": "t1"}, docstore.NewMutation().
		SetElem("tabs", docstore.Filter{"id": "t1"}, "position", map[string]interface{}{"x": 10.5, "y": -3}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Modified)

	res, err = c.UpdateOne(ctx, docstore.Filter{"id": "s1"}, docstore.NewMutation().
		Pull("tabs", docstore.Filter{"id": "t0"}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Modified)

	// Pulling again changes nothing
	res, err = c.UpdateOne(ctx, docstore.Filter{"id": "s1"}, docstore.NewMutation().
		Pull("tabs", docstore.Filter{"id": "t0"}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 0, res.Modified)

	doc, err := c.FindOne(ctx, docstore.Filter{"id": "s1"})
	require.NoError(t, err)
	tabs := doc["tabs"].([]interface{})
	require.Len(t, tabs, 2)

	first := tabs[0].(map[string]interface{})
	second := tabs[1].(map[string]interface{})
	assert.Equal(t, "t1", first["id"])
	assert.Equal(t, map[string]interface{}{"x": 10.5, "y": float64(-3)}, first["position"])
	assert.Equal(t, "t2", second["id"])
	assert.Equal(t, map[string]interface{}{"x": float64(0), "y": float64(0)}, second["position"])
}

func testClearIfAndRatio(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := s.Collection("things")
	require.NoError(t, c.InsertOne(ctx, docstore.Document{"id": "w", "active_tab_id": "t1"}))

	_, err := c.UpdateOne(ctx, docstore.Filter{"id": "w"}, docstore.NewMutation().ClearIf("active_tab_id", "t2"))
	require.NoError(t, err)
	doc, err := c.FindOne(ctx, docstore.Filter{"id": "w"})
	require.NoError(t, err)
	assert.Equal(t, "t1", doc["active_tab_id"])

	_, err = c.UpdateOne(ctx, docstore.Filter{"id": "w"}, docstore.NewMutation().ClearIf("active_tab_id", "t1"))
	require.NoError(t, err)
	doc, err = c.FindOne(ctx, docstore.Filter{"id": "w"})
	require.NoError(t, err)
	assert.Nil(t, doc["active_tab_id"])

	for _, ok := range []bool{true, false, true, true} {
		m := docstore.NewMutation().Inc("total", 1)
		if ok {
			m.Inc("ok", 1)
		}
		m.Ratio("rate", "ok", "total")
		_, err := c.UpdateOne(ctx, docstore.Filter{"id": "w"}, m)
		require.NoError(t, err)
	}

	doc, err = c.FindOne(ctx, docstore.Filter{"id": "w"})
	require.NoError(t, err)
	assert.Equal(t, float64(4), doc["total"])
	assert.Equal(t, float64(3), doc["ok"])
	assert.InDelta(t, 0.75, doc["rate"], 1e-9)
}

func testUpdateWithoutMatch(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := s.Collection("things")

	res, err := c.UpdateOne(ctx, docstore.Filter{"id": "nope"}, docstore.NewMutation().Set("x", 1))
	require.NoError(t, err)
	assert.Equal(t, docstore.UpdateResult{}, res)
}

func testUpdateMany(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := s.Collection("things")
	for _, id := range []string{"a", "b", "c"} {
		owner := "u1"
		if id == "c" {
			owner = "u2"
		}
		require.NoError(t, c.InsertOne(ctx, docstore.Document{"id": id, "owner": owner, "enabled": true}))
	}

	res, err := c.UpdateMany(ctx, docstore.Filter{"owner": "u1"}, docstore.NewMutation().Set("enabled", false))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 2, res.Modified)

	n, err := c.Count(ctx, docstore.Filter{"enabled": true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testConcurrentPush(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := s.Collection("sessions")
	require.NoError(t, c.InsertOne(ctx, docstore.Document{"id": "s1", "tabs": []interface{}{}}))

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.UpdateOne(ctx, docstore.Filter{"id": "s1"}, docstore.NewMutation().
				Push("tabs", map[string]interface{}{"id": fmt.Sprintf("t%02d", i)}))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	doc, err := c.FindOne(ctx, docstore.Filter{"id": "s1"})
	require.NoError(t, err)
	tabs := doc["tabs"].([]interface{})
	assert.Len(t, tabs, writers)

	seen := map[string]bool{}
	for _, tab := range tabs {
		seen[tab.(map[string]interface{})["id"].(string)] = true
	}
	assert.Len(t, seen, writers)
}

func testDeleteAndCount(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := s.Collection("things")
	require.NoError(t, c.InsertOne(ctx, docstore.Document{"id": "a", "kind": "x"}))
	require.NoError(t, c.InsertOne(ctx, docstore.Document{"id": "b", "kind": "x"}))

	n, err := c.DeleteOne(ctx, docstore.Filter{"id": "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.DeleteOne(ctx, docstore.Filter{"id": "a"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := c.Count(ctx, docstore.Filter{"kind": "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testFindSnapshot(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := s.Collection("things")
	require.NoError(t, c.InsertOne(ctx, docstore.Document{"id": "a", "kind": "x"}))
	require.NoError(t, c.InsertOne(ctx, docstore.Document{"id": "b", "kind": "x"}))

	cur, err := c.Find(ctx, docstore.Filter{"kind": "x"}, docstore.FindOptions{})
	require.NoError(t, err)

	// Writes after Find do not leak into the open cursor
	require.NoError(t, c.InsertOne(ctx, docstore.Document{"id": "c", "kind": "x"}))
	_, err = c.UpdateOne(ctx, docstore.Filter{"id": "a"}, docstore.NewMutation().Set("kind", "y"))
	require.NoError(t, err)

	var ids []string
	for cur.Next(ctx) {
		ids = append(ids, cur.Document().ID())
		assert.Equal(t, "x", cur.Document()["kind"])
	}
	require.NoError(t, cur.Err())
	require.NoError(t, cur.Close())
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func testActiveScope(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	raw := s.Collection("sessions")
	deletedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	active := docstore.Active(raw, "is_active", docstore.Stamp("updated_at", func() time.Time { return deletedAt }))

	require.NoError(t, active.InsertOne(ctx, docstore.Document{"id": "s1", "user_id": "u1"}))
	require.NoError(t, active.InsertOne(ctx, docstore.Document{"id": "s2", "user_id": "u1"}))

	n, err := active.DeleteOne(ctx, docstore.Filter{"id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = active.FindOne(ctx, docstore.Filter{"id": "s1"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	res, err := active.UpdateOne(ctx, docstore.Filter{"id": "s1"}, docstore.NewMutation().Set("name", "x"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matched)

	count, err := active.Count(ctx, docstore.Filter{"user_id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The document still exists underneath
	doc, err := raw.FindOne(ctx, docstore.Filter{"id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, false, doc["is_active"])
	assert.Equal(t, "2026-01-02T03:04:05Z", doc["updated_at"])

	// Untouched siblings keep no stamp
	doc, err = raw.FindOne(ctx, docstore.Filter{"id": "s2"})
	require.NoError(t, err)
	assert.NotContains(t, doc, "updated_at")
}

func testRejectsIDMutation(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := s.Collection("things")
	require.NoError(t, c.InsertOne(ctx, docstore.Document{"id": "a"}))

	_, err := c.UpdateOne(ctx, docstore.Filter{"id": "a"}, docstore.NewMutation().Set("id", "b"))
	assert.ErrorIs(t, err, docstore.ErrInvalidMutation)

	_, err = c.FindOne(ctx, docstore.Filter{"id": "a"})
	assert.NoError(t, err)
}
