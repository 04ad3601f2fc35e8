// ABOUTME: Tests for the single-slot reply future
// ABOUTME: Ensures a reply is delivered once and a second send is rejected

package mcp

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReply_Empty(t *testing.T) {
	r := NewReply()
	msg, ok := r.Collect()
	assert.False(t, ok)
	assert.Nil(t, msg)
}

func TestReply_SendOnce(t *testing.T) {
	r := NewReply()
	first := NewResult(json.RawMessage("1"), "first")

	require.NoError(t, r.Send(first))
	assert.ErrorIs(t, r.Send(NewResult(json.RawMessage("1"), "second")), ErrReplyAlreadySent)

	got, ok := r.Collect()
	require.True(t, ok)
	assert.Same(t, first, got)

	_, ok = r.Collect()
	assert.False(t, ok, "reply can only be collected once")
}

func TestReply_ConcurrentSend(t *testing.T) {
	r := NewReply()

	var wg sync.WaitGroup
	var delivered atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Send(NewResult(nil, i)) == nil {
				delivered.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), delivered.Load())
	_, ok := r.Collect()
	assert.True(t, ok)
}
