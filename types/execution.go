package types

import (
	"fmt"
	"strings"
)

// NotifyEvent is a single notification raised by a contract during
// execution.
type NotifyEvent struct {
	ScriptHash UInt160
	State      StackItem
}

// ExecutionResult is the outcome of running one script of a transaction.
type ExecutionResult struct {
	VMState       string
	Notifications []NotifyEvent
}

// Faulted reports whether the VM ended in the FAULT state.
func (r ExecutionResult) Faulted() bool {
	return strings.Contains(strings.ToUpper(r.VMState), "FAULT")
}

// ExecutedTx is a transaction together with the results of executing it.
type ExecutedTx struct {
	Hash    UInt256
	Results []ExecutionResult
}

// ApplicationLog is the node's application log for one transaction. Block
// is not part of the node response; offline dumps carry it so transactions
// can be replayed in chain order.
type ApplicationLog struct {
	TxID       string          `json:"txid"`
	Block      uint32          `json:"block,omitempty"`
	Executions []ExecutionJSON `json:"executions"`
}

// ExecutionJSON is one entry of ApplicationLog.Executions.
type ExecutionJSON struct {
	Trigger       string             `json:"trigger"`
	Contract      string             `json:"contract"`
	VMState       string             `json:"vmstate"`
	GasConsumed   string             `json:"gas_consumed"`
	Notifications []NotificationJSON `json:"notifications"`
}

// NotificationJSON is one notification as reported by the node.
type NotificationJSON struct {
	Contract string            `json:"contract"`
	State    ContractParameter `json:"state"`
}

// ExecutedTx converts the log to the form consumed by the indexer.
func (l *ApplicationLog) ExecutedTx() (*ExecutedTx, error) {
	hash, err := ParseUInt256(l.TxID)
	if err != nil {
		return nil, fmt.Errorf("txid: %w", err)
	}
	tx := &ExecutedTx{Hash: hash, Results: make([]ExecutionResult, 0, len(l.Executions))}
	for i, exec := range l.Executions {
		res := ExecutionResult{VMState: exec.VMState}
		for j, n := range exec.Notifications {
			contract, err := ParseUInt160(n.Contract)
			if err != nil {
				return nil, fmt.Errorf("execution %d notification %d contract: %w", i, j, err)
			}
			state, err := n.State.StackItem()
			if err != nil {
				return nil, fmt.Errorf("execution %d notification %d state: %w", i, j, err)
			}
			res.Notifications = append(res.Notifications, NotifyEvent{ScriptHash: contract, State: state})
		}
		tx.Results = append(tx.Results, res)
	}
	return tx, nil
}
