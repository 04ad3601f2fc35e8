// ABOUTME: Single-slot reply future scoped to one HTTP request
// ABOUTME: The dispatcher fulfils it at most once; the transport collects it afterwards

package mcp

import (
	"errors"
	"sync/atomic"
)

// ErrReplyAlreadySent indicates a second response for the same request.
var ErrReplyAlreadySent = errors.New("reply already sent")

// Reply carries at most one response from the dispatcher back to the
// transport handling the same request.
type Reply struct {
	ch   chan *Message
	sent atomic.Bool
}

// NewReply creates an empty reply slot.
func NewReply() *Reply {
	return &Reply{ch: make(chan *Message, 1)}
}

// Send fulfils the reply. It never blocks.
func (r *Reply) Send(m *Message) error {
	if !r.sent.CompareAndSwap(false, true) {
		return ErrReplyAlreadySent
	}
	r.ch <- m
	return nil
}

// Collect returns the response if one was sent.
func (r *Reply) Collect() (*Message, bool) {
	select {
	case m := <-r.ch:
		return m, true
	default:
		return nil, false
	}
}
