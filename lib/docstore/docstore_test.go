package docstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type record struct {
	Name      string    `json:"name"`
	Rank      int       `json:"rank"`
	CreatedAt time.Time `json:"createdAt"`
}

func openTestStore(t *testing.T) *Store {
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	coll := store.Collection("records")

	id := NewID()
	err := coll.Create(ctx, id, record{Name: "first", Rank: 1})
	require.NoError(t, err)

	// duplicate ids are rejected
	err = coll.Create(ctx, id, record{Name: "dupe"})
	require.Error(t, err)

	var got record
	err = coll.Get(ctx, id, &got)
	require.NoError(t, err)
	require.Equal(t, "first", got.Name)

	// merge update keeps untouched fields
	err = coll.Update(ctx, id, map[string]any{"rank": 5})
	require.NoError(t, err)
	err = coll.Get(ctx, id, &got)
	require.NoError(t, err)
	require.Equal(t, "first", got.Name)
	require.Equal(t, 5, got.Rank)

	err = coll.Get(ctx, "no-such-id", &got)
	require.ErrorIs(t, err, ErrNotFound)

	err = coll.Update(ctx, "no-such-id", map[string]any{"rank": 1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestQueryFilterOrderLimit(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	coll := store.Collection("records")

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := coll.Create(ctx, fmt.Sprintf("id-%d", i), record{
			Name:      fmt.Sprintf("rec-%d", i),
			Rank:      i,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	docs, err := coll.Run(ctx, Query{
		Filters: []Filter{Where("rank", ">=", 2)},
		OrderBy: "createdAt",
		Desc:    true,
		Limit:   2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	var got record
	require.NoError(t, docs[0].Decode(&got))
	require.Equal(t, "rec-4", got.Name)
	require.NoError(t, docs[1].Decode(&got))
	require.Equal(t, "rec-3", got.Name)

	// collections are isolated from each other
	other, err := store.Collection("other").Run(ctx, Query{})
	require.NoError(t, err)
	require.Empty(t, other)

	_, err = coll.Run(ctx, Query{Filters: []Filter{Where("rank; DROP TABLE documents", "==", 1)}})
	require.Error(t, err)

	_, err = coll.Run(ctx, Query{Filters: []Filter{Where("rank", "LIKE", 1)}})
	require.Error(t, err)
}

func TestTransactionConditionalWrite(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	coll := store.Collection("records")

	id := NewID()
	require.NoError(t, coll.Create(ctx, id, map[string]any{"status": "queued"}))

	claim := func() (bool, error) {
		won := false
		err := store.RunTransaction(ctx, func(tx Tx) error {
			var doc map[string]any
			err := tx.Collection("records").Get(ctx, id, &doc)
			if err != nil {
				return err
			}
			if doc["status"] != "queued" {
				return nil
			}
			won = true
			return tx.Collection("records").Update(ctx, id, map[string]any{"status": "running"})
		})
		return won, err
	}

	const attempts = 8
	wins := make(chan bool, attempts)
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := claim()
			errs <- err
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	require.Equal(t, 1, winners)
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	coll := store.Collection("records")

	id := NewID()
	require.NoError(t, coll.Create(ctx, id, map[string]any{"status": "queued"}))

	errBoom := fmt.Errorf("boom")
	err := store.RunTransaction(ctx, func(tx Tx) error {
		err := tx.Collection("records").Update(ctx, id, map[string]any{"status": "running"})
		require.NoError(t, err)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	var doc map[string]any
	require.NoError(t, coll.Get(ctx, id, &doc))
	require.Equal(t, "queued", doc["status"])
}
