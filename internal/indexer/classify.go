package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/neonotify/neonotify/types"
)

// ErrUntagged is returned by Classify for payloads that are not a non-empty
// array. Such notifications carry no event name and are not indexed.
var ErrUntagged = errors.New("notification payload is not a tagged array")

// Event is the decoded form of a notification payload. It is one of
// Transfer, Refund, MintBurn or Generic.
type Event interface {
	// EventType is the value written to notify_type.
	EventType() string
	// Addresses lists the address buckets the event is indexed under, in
	// write order.
	Addresses() []types.UInt160
	// Fill copies the event's fields onto the base record.
	Fill(rec *types.NotificationRecord) error
}

// Transfer moves Amount from From to To. From is nil for mint-style
// transfers that have no sender.
type Transfer struct {
	From   *types.UInt160
	To     types.UInt160
	Amount *big.Int
}

func (Transfer) EventType() string { return types.EventTransfer }

func (e Transfer) Addresses() []types.UInt160 {
	if e.From == nil {
		return []types.UInt160{e.To}
	}
	return []types.UInt160{e.To, *e.From}
}

func (e Transfer) Fill(rec *types.NotificationRecord) error {
	from := ""
	if e.From != nil {
		from = types.ToAddress(*e.From)
	}
	rec.NotifyType = types.EventTransfer
	rec.AddrFrom = &from
	rec.AddrTo = types.ToAddress(e.To)
	rec.Amount = e.Amount.String()
	return nil
}

// Refund credits Amount to To, optionally naming the refunded asset.
type Refund struct {
	To     types.UInt160
	Amount *big.Int
	Asset  *string
}

func (Refund) EventType() string { return types.EventRefund }

func (e Refund) Addresses() []types.UInt160 { return []types.UInt160{e.To} }

func (e Refund) Fill(rec *types.NotificationRecord) error {
	rec.NotifyType = types.EventRefund
	rec.AddrTo = types.ToAddress(e.To)
	rec.Amount = e.Amount.String()
	rec.Asset = e.Asset
	return nil
}

// MintBurn is a mint or burn of Amount for To. Type holds which one.
type MintBurn struct {
	Type   string
	To     types.UInt160
	Amount *big.Int
}

func (e MintBurn) EventType() string { return e.Type }

func (e MintBurn) Addresses() []types.UInt160 { return []types.UInt160{e.To} }

func (e MintBurn) Fill(rec *types.NotificationRecord) error {
	rec.NotifyType = e.Type
	rec.AddrTo = types.ToAddress(e.To)
	rec.Amount = e.Amount.String()
	return nil
}

// Generic is any other tagged notification. The whole payload is kept.
type Generic struct {
	Type  string
	State types.StackItem
}

func (e Generic) EventType() string { return e.Type }

func (Generic) Addresses() []types.UInt160 { return nil }

func (e Generic) Fill(rec *types.NotificationRecord) error {
	state, err := json.Marshal(types.ParameterFromStackItem(e.State))
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	rec.NotifyType = e.Type
	rec.State = state
	return nil
}

// Classify decodes a notification payload. The first array element names
// the event. Well-known events that are too short fall back to Generic.
func Classify(state types.StackItem) (Event, error) {
	elems, ok := types.ItemArray(state)
	if !ok || len(elems) == 0 {
		return nil, ErrUntagged
	}
	tag, err := types.ItemString(elems[0])
	if err != nil {
		return nil, fmt.Errorf("reading event name: %w", err)
	}

	switch {
	case tag == types.EventTransfer && len(elems) >= 4:
		return decodeTransfer(elems)
	case tag == types.EventRefund && len(elems) >= 3:
		return decodeRefund(elems)
	case (tag == types.EventMint || tag == types.EventBurn) && len(elems) >= 3:
		to, amount, err := decodeCredit(elems[1], elems[2])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		return MintBurn{Type: tag, To: to, Amount: amount}, nil
	default:
		return Generic{Type: tag, State: state}, nil
	}
}

func decodeTransfer(elems []types.StackItem) (Event, error) {
	fromBytes, err := elems[1].Bytes()
	if err != nil {
		return nil, fmt.Errorf("transfer sender: %w", err)
	}
	var from *types.UInt160
	if len(fromBytes) == types.UInt160Size {
		h, _ := types.UInt160FromBytes(fromBytes)
		from = &h
	}
	to, amount, err := decodeCredit(elems[2], elems[3])
	if err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}
	return Transfer{From: from, To: to, Amount: amount}, nil
}

func decodeRefund(elems []types.StackItem) (Event, error) {
	to, amount, err := decodeCredit(elems[1], elems[2])
	if err != nil {
		return nil, fmt.Errorf("refund: %w", err)
	}
	ev := Refund{To: to, Amount: amount}
	if len(elems) >= 4 {
		asset, err := types.ItemString(elems[3])
		if err != nil {
			return nil, fmt.Errorf("refund asset: %w", err)
		}
		ev.Asset = &asset
	}
	return ev, nil
}

func decodeCredit(toItem, amountItem types.StackItem) (types.UInt160, *big.Int, error) {
	toBytes, err := toItem.Bytes()
	if err != nil {
		return types.UInt160{}, nil, fmt.Errorf("recipient: %w", err)
	}
	to, err := types.UInt160FromBytes(toBytes)
	if err != nil {
		return types.UInt160{}, nil, fmt.Errorf("recipient: %w", err)
	}
	amount, err := amountItem.BigInt()
	if err != nil {
		return types.UInt160{}, nil, fmt.Errorf("amount: %w", err)
	}
	return to, amount, nil
}
