package library

import "sync/atomic"

// Holder publishes the current pack. Readers take a snapshot with Current
// and keep using it for the whole decision; a reload stores a new pack
// without disturbing in-flight readers.
type Holder struct {
	p atomic.Pointer[Pack]
}

// NewHolder returns a holder publishing p.
func NewHolder(p *Pack) *Holder {
	h := &Holder{}
	h.p.Store(p)
	return h
}

// Current returns the published pack, or nil if none was stored.
func (h *Holder) Current() *Pack {
	return h.p.Load()
}

// Swap publishes p and returns the previous pack.
func (h *Holder) Swap(p *Pack) *Pack {
	return h.p.Swap(p)
}
