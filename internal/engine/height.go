package engine

import "sync/atomic"

// Height is a chain height set by whoever replays the chain. It satisfies
// the height half of Engine for offline ingestion.
type Height struct {
	v atomic.Uint32
}

// CurrentHeight returns the last height set.
func (h *Height) CurrentHeight() uint32 { return h.v.Load() }

// SetCurrentHeight sets the height reported by CurrentHeight.
func (h *Height) SetCurrentHeight(v uint32) { h.v.Store(v) }
