// Package neorpc attaches the indexer to a NEO node over its JSON-RPC
// interface.
package neorpc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/neonotify/neonotify/internal/engine"
	"github.com/neonotify/neonotify/rpc/jsonrpc/client"
	rpctypes "github.com/neonotify/neonotify/rpc/jsonrpc/types"
	"github.com/neonotify/neonotify/types"
)

var _ engine.Engine = (*Node)(nil)

// errCodeUnknown is returned by the node for transactions, blocks and
// contracts it does not know.
const errCodeUnknown = -100

// InvocationTransaction is the only transaction type that runs contract
// code.
const InvocationTransaction = "InvocationTransaction"

// Block is the subset of getblock's verbose output the follower needs.
type Block struct {
	Hash  string        `json:"hash"`
	Index uint32        `json:"index"`
	Time  int64         `json:"time"`
	Tx    []Transaction `json:"tx"`
}

// Transaction is a transaction summary inside Block.
type Transaction struct {
	TxID string `json:"txid"`
	Type string `json:"type"`
}

type invokeResult struct {
	State       string                    `json:"state"`
	GasConsumed string                    `json:"gas_consumed"`
	Stack       []types.ContractParameter `json:"stack"`
}

// Node is an engine.Engine backed by a node's RPC endpoint. Its
// CurrentHeight is driven by the Follower rather than read from the node,
// so that it trails the block being indexed the same way an embedded
// engine would.
type Node struct {
	rpc    *client.Client
	height atomic.Uint32
}

// NewNode returns a Node talking to address.
func NewNode(address string, timeout time.Duration) (*Node, error) {
	c, err := client.New(address, timeout)
	if err != nil {
		return nil, err
	}
	return &Node{rpc: c}, nil
}

func (n *Node) CurrentHeight() uint32 { return n.height.Load() }

// SetCurrentHeight sets the height reported by CurrentHeight.
func (n *Node) SetCurrentHeight(h uint32) { n.height.Store(h) }

func (n *Node) InvokeScript(ctx context.Context, script []byte) (*engine.InvokeResult, error) {
	var res invokeResult
	if err := n.rpc.Call(ctx, "invokescript", &res, hex.EncodeToString(script)); err != nil {
		return nil, fmt.Errorf("invokescript: %w", err)
	}
	out := &engine.InvokeResult{State: res.State, GasConsumed: res.GasConsumed}
	for i, p := range res.Stack {
		item, err := p.StackItem()
		if err != nil {
			return nil, fmt.Errorf("invokescript stack item %d: %w", i, err)
		}
		out.Stack = append(out.Stack, item)
	}
	return out, nil
}

func (n *Node) ContractState(ctx context.Context, hash types.UInt160) (map[string]interface{}, error) {
	var state map[string]interface{}
	if err := n.rpc.Call(ctx, "getcontractstate", &state, hash.String()); err != nil {
		return nil, fmt.Errorf("getcontractstate: %w", err)
	}
	return state, nil
}

// BlockCount returns the number of blocks the node has, i.e. its height + 1.
func (n *Node) BlockCount(ctx context.Context) (uint32, error) {
	var count uint32
	if err := n.rpc.Call(ctx, "getblockcount", &count); err != nil {
		return 0, fmt.Errorf("getblockcount: %w", err)
	}
	return count, nil
}

// Block returns the block at height with its transaction list.
func (n *Node) Block(ctx context.Context, height uint32) (*Block, error) {
	b := new(Block)
	if err := n.rpc.Call(ctx, "getblock", b, height, 1); err != nil {
		return nil, fmt.Errorf("getblock %d: %w", height, err)
	}
	return b, nil
}

// ApplicationLog returns the execution log of txid, or nil if the node has
// none for it.
func (n *Node) ApplicationLog(ctx context.Context, txid string) (*types.ApplicationLog, error) {
	l := new(types.ApplicationLog)
	err := n.rpc.Call(ctx, "getapplicationlog", l, txid)
	var rpcErr *rpctypes.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == errCodeUnknown {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getapplicationlog %s: %w", txid, err)
	}
	return l, nil
}
