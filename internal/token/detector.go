package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/neonotify/neonotify/internal/engine"
	"github.com/neonotify/neonotify/internal/indexer"
	"github.com/neonotify/neonotify/libs/log"
	"github.com/neonotify/neonotify/types"
)

var _ indexer.TokenDetector = (*Detector)(nil)

// ErrNotToken is returned by Detect when the contract does not answer the
// token interface.
var ErrNotToken = errors.New("contract is not a token")

// probeMethods are called in this order; results are popped in reverse.
var probeMethods = []string{"decimals", "name", "symbol"}

// Detector probes contracts for token metadata through the execution
// engine.
type Detector struct {
	engine engine.Engine
	logger log.Logger
}

// NewDetector returns a Detector using eng.
func NewDetector(eng engine.Engine, logger log.Logger) *Detector {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Detector{engine: eng, logger: logger}
}

// ProbeScript returns the read-only script used to query a contract's token
// metadata.
func ProbeScript(hash types.UInt160) []byte {
	sb := engine.NewScriptBuilder()
	for _, m := range probeMethods {
		sb.EmitAppCall(hash, m)
	}
	return sb.Bytes()
}

// Detect queries decimals, name and symbol of the contract at hash. txid is
// the transaction the contract was first seen in.
func (d *Detector) Detect(ctx context.Context, hash types.UInt160, txid types.UInt256) (*types.TokenDescriptor, error) {
	res, err := d.engine.InvokeScript(ctx, ProbeScript(hash))
	if err != nil {
		return nil, fmt.Errorf("%w: invocation failed: %v", ErrNotToken, err)
	}
	if res.Faulted() {
		return nil, fmt.Errorf("%w: invocation faulted", ErrNotToken)
	}
	stack := res.Stack
	if len(stack) < len(probeMethods) {
		return nil, fmt.Errorf("%w: expected %d results, got %d", ErrNotToken, len(probeMethods), len(stack))
	}

	pop := func() types.StackItem {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return item
	}
	symbol, err := types.ItemString(pop())
	if err != nil {
		return nil, fmt.Errorf("%w: symbol: %v", ErrNotToken, err)
	}
	name, err := types.ItemString(pop())
	if err != nil {
		return nil, fmt.Errorf("%w: name: %v", ErrNotToken, err)
	}
	decimals, err := pop().BigInt()
	if err != nil {
		return nil, fmt.Errorf("%w: decimals: %v", ErrNotToken, err)
	}
	if name == "" || symbol == "" {
		return nil, fmt.Errorf("%w: empty name or symbol", ErrNotToken)
	}
	if !decimals.IsInt64() {
		return nil, fmt.Errorf("%w: decimals out of range", ErrNotToken)
	}

	desc := &types.TokenDescriptor{
		Block: d.engine.CurrentHeight() + 1,
		Tx:    txid.String(),
		Token: types.TokenInfo{
			Name:            name,
			Symbol:          symbol,
			Decimals:        decimals.Int64(),
			ScriptHash:      hash.String(),
			ContractAddress: types.ToAddress(hash),
		},
	}

	contract, err := d.engine.ContractState(ctx, hash)
	if err != nil {
		d.logger.Debug("contract state unavailable", "contract", hash.String(), "err", err)
	} else if contract != nil {
		contract["script"] = nil
		desc.Contract = contract
	}
	return desc, nil
}
