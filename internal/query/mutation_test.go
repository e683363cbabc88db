package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutateRejectsReentrantTrigger(t *testing.T) {
	c := New(time.Minute)
	key := Key{"user:1", "checkout", "submit"}

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)

	go func() {
		_, err := Mutate(context.Background(), c, Mutation[int]{Key: key}, func(context.Context) (int, error) {
			close(entered)
			<-release
			return 1, nil
		})
		done <- err
	}()

	<-entered
	assert.True(t, c.IsPending(key))

	var surfaced error
	_, err := Mutate(context.Background(), c, Mutation[int]{
		Key:     key,
		OnError: func(err error) { surfaced = err },
	}, func(context.Context) (int, error) {
		t.Fatal("second trigger must not run")
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrPending)
	assert.ErrorIs(t, surfaced, ErrPending)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.IsPending(key))
}

func TestMutateCallbacks(t *testing.T) {
	c := New(time.Minute)
	c.Set(Key{"user:1", "cart"}, "old")

	var got int
	_, err := Mutate(context.Background(), c, Mutation[int]{
		Key:         Key{"user:1", "cart", "add"},
		Invalidates: []Key{{"user:1", "cart"}},
		OnSuccess: func(v int) {
			got = v
			assert.True(t, c.State(Key{"user:1", "cart"}).IsStale, "invalidation precedes OnSuccess")
		},
	}, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	boom := errors.New("boom")
	var surfaced error
	_, err = Mutate(context.Background(), c, Mutation[int]{
		Key:         Key{"user:1", "cart", "add"},
		Invalidates: []Key{{"user:1", "orders"}},
		OnError:     func(err error) { surfaced = err },
	}, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, surfaced, boom)
}
