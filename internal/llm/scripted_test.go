package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedRepliesInOrder(t *testing.T) {
	s := NewScripted("one", "two")
	boom := errors.New("boom")
	s.Push(Reply{Err: boom})

	ctx := context.Background()
	req := Request{Messages: []Message{User("q")}}

	got, err := s.Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	got, err = s.Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "two", got)

	_, err = s.Complete(ctx, req)
	assert.ErrorIs(t, err, boom)

	_, err = s.Complete(ctx, req)
	assert.ErrorIs(t, err, ErrScriptExhausted)

	assert.Len(t, s.Requests(), 4)
	assert.Equal(t, 0, s.Remaining())
}

func TestScriptedHonorsCancellation(t *testing.T) {
	s := NewScripted("unused")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Complete(ctx, Request{Messages: []Message{User("q")}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, s.Remaining())
}

func TestScriptedConcurrent(t *testing.T) {
	const n = 50
	texts := make([]string, n)
	for i := range texts {
		texts[i] = "r"
	}
	s := NewScripted(texts...)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Complete(context.Background(), Request{Messages: []Message{User("q")}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, s.Remaining())
	assert.Len(t, s.Requests(), n)
}
