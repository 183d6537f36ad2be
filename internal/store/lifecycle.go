package store

import (
	"context"
	"errors"
)

// ErrAbandoned is returned when a call resolves after its caller's context
// ended or after the store was disposed. The result is not written.
var ErrAbandoned = errors.New("store: result abandoned")

// ticket identifies one in-flight call.
type ticket struct {
	ctx context.Context
	gen uint64
}

// tracker counts in-flight calls and tags them with the store generation.
// It is not safe on its own; every method runs under the owning store's lock.
type tracker struct {
	gen      uint64
	inflight int
}

func (t *tracker) begin(ctx context.Context) ticket {
	t.inflight++
	return ticket{ctx: ctx, gen: t.gen}
}

// settle retires tk and reports whether its result may still be written.
func (t *tracker) settle(tk ticket) bool {
	if tk.gen != t.gen {
		return false
	}
	if t.inflight > 0 {
		t.inflight--
	}
	return tk.ctx.Err() == nil
}

// live reports whether tk may still write, without retiring it.
func (t *tracker) live(tk ticket) bool {
	return tk.gen == t.gen && tk.ctx.Err() == nil
}

func (t *tracker) dispose() {
	t.gen++
	t.inflight = 0
}

func (t *tracker) busy() bool {
	return t.inflight > 0
}
