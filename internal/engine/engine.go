// Package engine describes what the indexer needs from the blockchain
// execution engine it is attached to.
package engine

import (
	"context"
	"strings"

	"github.com/neonotify/neonotify/types"
)

//go:generate mockery --case underscore --name Engine

// Engine is the execution engine the indexer is attached to.
type Engine interface {
	// CurrentHeight is the height of the last block the engine persisted.
	CurrentHeight() uint32
	// InvokeScript runs script read-only against the current state.
	InvokeScript(ctx context.Context, script []byte) (*InvokeResult, error)
	// ContractState returns the deployed contract's metadata as reported by
	// the node.
	ContractState(ctx context.Context, hash types.UInt160) (map[string]interface{}, error)
}

// InvokeResult is the outcome of a read-only invocation. Stack is ordered
// bottom to top, so the last element is the last value pushed.
type InvokeResult struct {
	State       string
	GasConsumed string
	Stack       []types.StackItem
}

// Faulted reports whether the invocation ended in the FAULT state.
func (r *InvokeResult) Faulted() bool {
	return strings.Contains(strings.ToUpper(r.State), "FAULT")
}
