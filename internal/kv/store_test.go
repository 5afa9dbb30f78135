package kv

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract runs the behaviour every backend must share.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("increment starts at one", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for want := int64(1); want <= 3; want++ {
			got, err := s.Increment(ctx, "tags:counter")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("increment is unique under concurrency", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const callers = 20
		ids := make(chan int64, callers)
		var wg sync.WaitGroup
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := s.Increment(ctx, "tasks:counter")
				assert.NoError(t, err)
				ids <- id
			}()
		}
		wg.Wait()
		close(ids)

		seen := map[int64]bool{}
		for id := range ids {
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
		assert.Len(t, seen, callers)
	})

	t.Run("fields merge and overwrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		got, err := s.GetFields(ctx, "tag:1")
		require.NoError(t, err)
		assert.Empty(t, got)

		require.NoError(t, s.SetFields(ctx, "tag:1", map[string]string{"id": "1", "name": "Backend"}))
		require.NoError(t, s.SetField(ctx, "tag:1", "name", "Frontend"))
		require.NoError(t, s.SetFields(ctx, "tag:1", map[string]string{"color": "#fff"}))
		require.NoError(t, s.SetFields(ctx, "tag:1", nil))

		got, err = s.GetFields(ctx, "tag:1")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"id": "1", "name": "Frontend", "color": "#fff"}, got)
	})

	t.Run("delete removes any type", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SetFields(ctx, "tag:1", map[string]string{"id": "1"}))
		_, err := s.SetStringNX(ctx, "users:email:a@b.c", "1")
		require.NoError(t, err)
		require.NoError(t, s.AddMember(ctx, "tags", "tag:1"))

		for _, key := range []string{"tag:1", "users:email:a@b.c", "tags", "missing"} {
			require.NoError(t, s.Delete(ctx, key))
		}

		fields, err := s.GetFields(ctx, "tag:1")
		require.NoError(t, err)
		assert.Empty(t, fields)

		_, ok, err := s.GetString(ctx, "users:email:a@b.c")
		require.NoError(t, err)
		assert.False(t, ok)

		members, err := s.Members(ctx, "tags")
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("set membership", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.AddMember(ctx, "tags", "tag:1"))
		require.NoError(t, s.AddMember(ctx, "tags", "tag:2"))
		require.NoError(t, s.AddMember(ctx, "tags", "tag:2"))
		require.NoError(t, s.RemoveMember(ctx, "tags", "tag:3"))

		members, err := s.Members(ctx, "tags")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"tag:1", "tag:2"}, members)

		require.NoError(t, s.RemoveMember(ctx, "tags", "tag:1"))
		members, err = s.Members(ctx, "tags")
		require.NoError(t, err)
		assert.Equal(t, []string{"tag:2"}, members)
	})

	t.Run("strings and set if absent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, ok, err := s.GetString(ctx, "users:email:a@b.c")
		require.NoError(t, err)
		assert.False(t, ok)

		set, err := s.SetStringNX(ctx, "users:email:a@b.c", "1")
		require.NoError(t, err)
		assert.True(t, set)

		set, err = s.SetStringNX(ctx, "users:email:a@b.c", "2")
		require.NoError(t, err)
		assert.False(t, set)

		value, ok, err := s.GetString(ctx, "users:email:a@b.c")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "1", value)

	})

	t.Run("compare and swap or delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		key := "users:email:a@b.c"

		swapped, err := s.CompareAndSwap(ctx, key, "", "1")
		require.NoError(t, err)
		assert.False(t, swapped, "missing key never matches")
		_, ok, err := s.GetString(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.SetStringNX(ctx, key, "1")
		require.NoError(t, err)

		swapped, err = s.CompareAndSwap(ctx, key, "2", "3")
		require.NoError(t, err)
		assert.False(t, swapped)

		swapped, err = s.CompareAndSwap(ctx, key, "1", "3")
		require.NoError(t, err)
		assert.True(t, swapped)

		deleted, err := s.CompareAndDelete(ctx, key, "1")
		require.NoError(t, err)
		assert.False(t, deleted)
		value, _, err := s.GetString(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "3", value)

		deleted, err = s.CompareAndDelete(ctx, key, "3")
		require.NoError(t, err)
		assert.True(t, deleted)
		_, ok, err = s.GetString(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("only one concurrent swap wins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		key := "users:email:a@b.c"
		_, err := s.SetStringNX(ctx, key, "9")
		require.NoError(t, err)

		const callers = 10
		wins := make(chan string, callers)
		var wg sync.WaitGroup
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				swapped, err := s.CompareAndSwap(ctx, key, "9", fmt.Sprint(i))
				assert.NoError(t, err)
				if swapped {
					wins <- fmt.Sprint(i)
				}
			}()
		}
		wg.Wait()
		close(wins)

		var winners []string
		for w := range wins {
			winners = append(winners, w)
		}
		require.Len(t, winners, 1)
		value, _, err := s.GetString(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, winners[0], value)
	})

	t.Run("keys by pattern", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i := 1; i <= 3; i++ {
			require.NoError(t, s.SetFields(ctx, fmt.Sprintf("user:%d", i), map[string]string{"id": fmt.Sprint(i)}))
		}
		_, err := s.SetStringNX(ctx, "users:email:a@b.c", "1")
		require.NoError(t, err)
		_, err = s.Increment(ctx, "users:counter")
		require.NoError(t, err)
		require.NoError(t, s.AddMember(ctx, "tags", "tag:1"))

		keys, err := s.Keys(ctx, "user:*")
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Equal(t, []string{"user:1", "user:2", "user:3"}, keys)

		keys, err = s.Keys(ctx, "users:*")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"users:email:a@b.c", "users:counter"}, keys)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Ping(context.Background()))
	})
}
