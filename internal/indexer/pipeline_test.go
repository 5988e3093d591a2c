package indexer_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/neonotify/neonotify/internal/engine"
	"github.com/neonotify/neonotify/internal/engine/mocks"
	"github.com/neonotify/neonotify/internal/indexer"
	"github.com/neonotify/neonotify/internal/store"
	"github.com/neonotify/neonotify/internal/token"
	"github.com/neonotify/neonotify/libs/log"
	"github.com/neonotify/neonotify/types"
)

type fixture struct {
	store    store.Store
	engine   *mocks.Engine
	registry *token.Registry
	pipeline *indexer.Pipeline
	query    *indexer.Query
}

// newFixture wires a pipeline whose engine reports height and answers every
// token probe with a fault.
func newFixture(t *testing.T, height uint32) *fixture {
	t.Helper()
	s, err := store.Open("pipeline", store.BackendMemDB, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	eng := &mocks.Engine{}
	eng.On("CurrentHeight").Return(height).Maybe()
	eng.On("InvokeScript", mock.Anything, mock.Anything).
		Return(&engine.InvokeResult{State: "FAULT"}, nil).Maybe()

	logger := log.TestingLogger()
	reg := token.NewRegistry(s, 1024*1024, logger)
	p := indexer.NewPipeline(indexer.PipelineArgs{
		Store:    s,
		Heights:  eng,
		Registry: reg,
		Detector: token.NewDetector(eng, logger),
		Logger:   logger,
	})
	return &fixture{store: s, engine: eng, registry: reg, pipeline: p, query: indexer.NewQuery(s)}
}

func hash160(b byte) types.UInt160 {
	var h types.UInt160
	for i := range h {
		h[i] = b
	}
	return h
}

func hash256(b byte) types.UInt256 {
	var h types.UInt256
	h[0] = b
	h[31] = 0xee
	return h
}

func notify(contract types.UInt160, items ...types.StackItem) types.NotifyEvent {
	return types.NotifyEvent{ScriptHash: contract, State: types.Array(items)}
}

func halt(events ...types.NotifyEvent) types.ExecutionResult {
	return types.ExecutionResult{VMState: "HALT, BREAK", Notifications: events}
}

func executedTx(id byte, results ...types.ExecutionResult) *types.ExecutedTx {
	return &types.ExecutedTx{Hash: hash256(id), Results: results}
}

func transfer(contract, from, to types.UInt160, amount int64) types.NotifyEvent {
	return notify(contract, types.ByteArray("transfer"), types.ByteArray(from[:]), types.ByteArray(to[:]), types.NewInteger(amount))
}

func refund(contract, to types.UInt160, amount int64) types.NotifyEvent {
	return notify(contract, types.ByteArray("refund"), types.ByteArray(to[:]), types.NewInteger(amount))
}

// countKeys counts every key outside the metadata partition.
func countKeys(t *testing.T, s store.Store) int {
	t.Helper()
	n := 0
	require.NoError(t, store.IteratePrefix(s, nil, func(key, _ []byte) (bool, error) {
		if indexer.Kind(key[0]) != indexer.KindMeta {
			n++
		}
		return true, nil
	}))
	return n
}

func TestIndexTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 41)
	contract, from, to := hash160(0xc1), hash160(0xa1), hash160(0xa2)
	tx := executedTx(1, halt(transfer(contract, from, to, 100)))

	require.NoError(t, f.pipeline.Index(ctx, tx))

	addrFrom := types.ToAddress(from)
	want := types.NotificationRecord{
		Contract:   contract.String(),
		Block:      42,
		Tx:         tx.Hash.String(),
		Index:      0,
		NotifyType: "transfer",
		AddrFrom:   &addrFrom,
		AddrTo:     types.ToAddress(to),
		Amount:     "100",
	}

	filter := indexer.NewFilter()
	lookups := map[string]func() ([]types.NotificationRecord, error){
		"to":       func() ([]types.NotificationRecord, error) { return f.query.ByAddress(to, filter) },
		"from":     func() ([]types.NotificationRecord, error) { return f.query.ByAddress(from, filter) },
		"contract": func() ([]types.NotificationRecord, error) { return f.query.ByContract(contract, filter) },
		"block":    func() ([]types.NotificationRecord, error) { return f.query.ByBlock(42, filter) },
		"tx":       func() ([]types.NotificationRecord, error) { return f.query.ByTransaction(tx.Hash, filter) },
	}
	for name, lookup := range lookups {
		recs, err := lookup()
		require.NoError(t, err, name)
		if diff := cmp.Diff([]types.NotificationRecord{want}, recs); diff != "" {
			t.Errorf("%s bucket mismatch (-want +got):\n%s", name, diff)
		}
	}

	checked, err := f.registry.HasBeenChecked(contract)
	require.NoError(t, err)
	assert.True(t, checked)
}

func TestIndexMintStyleTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	contract, to := hash160(0xc2), hash160(0xa3)
	ev := notify(contract, types.ByteArray("transfer"), types.ByteArray{}, types.ByteArray(to[:]), types.NewInteger(7))

	require.NoError(t, f.pipeline.Index(ctx, executedTx(2, halt(ev))))

	recs, err := f.query.ByAddress(to, indexer.NewFilter())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].AddrFrom)
	assert.Equal(t, "", *recs[0].AddrFrom)
	assert.Equal(t, "7", recs[0].Amount)

	// only the recipient has an address entry
	n := 0
	require.NoError(t, store.IteratePrefix(f.store, []byte{byte(indexer.KindAddress)}, func(_, _ []byte) (bool, error) {
		n++
		return true, nil
	}))
	assert.Equal(t, 1, n)
}

func TestIndexRefundWithoutAsset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 9)
	contract, to := hash160(0xc3), hash160(0xa4)

	require.NoError(t, f.pipeline.Index(ctx, executedTx(3, halt(refund(contract, to, 50)))))

	raw, err := f.store.Get(indexer.EncodeKey(indexer.KindAddress, to.Bytes(), 1))
	require.NoError(t, err)
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "asset")
	assert.NotContains(t, fields, "addr_from")
	assert.Equal(t, "refund", fields["notify_type"])
	assert.Equal(t, "50", fields["amount"])
}

func TestIndexFaultedTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	contract := hash160(0xc4)
	faulted := types.ExecutionResult{
		VMState:       "FAULT, BREAK",
		Notifications: []types.NotifyEvent{transfer(contract, hash160(1), hash160(2), 1)},
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, f.pipeline.Index(ctx, executedTx(4, faulted)))
	}
	assert.Zero(t, countKeys(t, f.store))

	cp, ok, err := indexer.LastIndexed(f.store)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, executedTx(4, faulted).Hash, cp.Tx)
	f.engine.AssertNotCalled(t, "InvokeScript", mock.Anything, mock.Anything)
}

func TestIndexEventTypeFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)
	contract := hash160(0xc5)

	txs := []*types.ExecutedTx{
		executedTx(10, halt(transfer(contract, hash160(1), hash160(2), 1))),
		executedTx(11, halt(refund(contract, hash160(3), 2))),
		executedTx(12, halt(transfer(contract, hash160(2), hash160(1), 3), refund(contract, hash160(1), 4))),
		executedTx(13, halt(transfer(contract, hash160(4), hash160(5), 5))),
	}
	for _, tx := range txs {
		require.NoError(t, f.pipeline.Index(ctx, tx))
	}

	filter := indexer.NewFilter()
	filter.EventType = "transfer"
	recs, err := f.query.ByContract(contract, filter)
	require.NoError(t, err)

	amounts := []string{}
	for _, r := range recs {
		assert.Equal(t, "transfer", r.NotifyType)
		amounts = append(amounts, r.Amount)
	}
	assert.Equal(t, []string{"1", "3", "5"}, amounts)

	all, err := f.query.ByContract(contract, indexer.NewFilter())
	require.NoError(t, err)
	assert.Len(t, all, 5)

	// all txs landed in block 101; index is the position within the block
	block, err := f.query.ByBlock(101, indexer.NewFilter())
	require.NoError(t, err)
	require.Len(t, block, 5)
	for i, r := range block {
		assert.EqualValues(t, i, r.Index)
	}
}

func TestIndexGenericNotification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	contract := hash160(0xc6)
	tx := executedTx(20, halt(notify(contract, types.ByteArray("deploy"), types.NewInteger(9))))

	require.NoError(t, f.pipeline.Index(ctx, tx))

	recs, err := f.query.ByTransaction(tx.Hash, indexer.NewFilter())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "deploy", recs[0].NotifyType)
	assert.JSONEq(t,
		`{"type":"Array","value":[{"type":"ByteArray","value":"6465706c6f79"},{"type":"Integer","value":"9"}]}`,
		string(recs[0].State))

	// generic events have no address index entries
	n := 0
	require.NoError(t, store.IteratePrefix(f.store, []byte{byte(indexer.KindAddress)}, func(_, _ []byte) (bool, error) {
		n++
		return true, nil
	}))
	assert.Zero(t, n)
}

func TestIndexSkipsMalformedNotification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	contract, to := hash160(0xc7), hash160(0xa7)
	malformed := notify(contract, types.ByteArray("transfer"), types.ByteArray{}, types.ByteArray{0x01}, types.NewInteger(1))
	untagged := types.NotifyEvent{ScriptHash: contract, State: types.ByteArray("plain")}
	tx := executedTx(30, halt(malformed, untagged, refund(contract, to, 8)))

	require.NoError(t, f.pipeline.Index(ctx, tx))

	recs, err := f.query.ByTransaction(tx.Hash, indexer.NewFilter())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "refund", recs[0].NotifyType)
	assert.EqualValues(t, 0, recs[0].Index, "skipped notifications leave no gap")
}

func TestTokenDetectionRunsOncePerContract(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open("pipeline", store.BackendMemDB, "")
	require.NoError(t, err)
	defer s.Close()

	tokenHash, other := hash160(0xd1), hash160(0xd2)
	eng := mocks.NewEngine(t)
	eng.On("CurrentHeight").Return(uint32(7))
	eng.On("InvokeScript", mock.Anything, token.ProbeScript(tokenHash)).Return(&engine.InvokeResult{
		State: "HALT",
		Stack: []types.StackItem{types.NewInteger(8), types.ByteArray("Name"), types.ByteArray("SYM")},
	}, nil).Once()
	eng.On("ContractState", mock.Anything, tokenHash).Return(map[string]interface{}{"script": "00"}, nil).Once()

	reg := token.NewRegistry(s, 1024*1024, nil)
	p := indexer.NewPipeline(indexer.PipelineArgs{
		Store:    s,
		Heights:  eng,
		Registry: reg,
		Detector: token.NewDetector(eng, nil),
	})

	// the second notification's contract is never probed
	first := executedTx(40, halt(
		transfer(tokenHash, hash160(1), hash160(2), 1),
		transfer(other, hash160(1), hash160(2), 1),
	))
	second := executedTx(41, halt(transfer(tokenHash, hash160(2), hash160(1), 1)))
	require.NoError(t, p.Index(ctx, first))
	require.NoError(t, p.Index(ctx, second))

	checked, err := reg.HasBeenChecked(tokenHash)
	require.NoError(t, err)
	assert.True(t, checked)
	checked, err = reg.HasBeenChecked(other)
	require.NoError(t, err)
	assert.False(t, checked)

	desc, err := reg.Lookup(tokenHash)
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "SYM", desc.Token.Symbol)
	assert.Equal(t, first.Hash.String(), desc.Tx)
	assert.EqualValues(t, 8, desc.Block)

	tokens, err := reg.List(indexer.NewFilter())
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestFailedDetectionStillMarksChecked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	contract := hash160(0xd3)

	require.NoError(t, f.pipeline.Index(ctx, executedTx(50, halt(refund(contract, hash160(1), 1)))))
	require.NoError(t, f.pipeline.Index(ctx, executedTx(51, halt(refund(contract, hash160(1), 1)))))

	checked, err := f.registry.HasBeenChecked(contract)
	require.NoError(t, err)
	assert.True(t, checked)
	f.engine.AssertNumberOfCalls(t, "InvokeScript", 1)

	desc, err := f.registry.Lookup(contract)
	require.NoError(t, err)
	assert.Nil(t, desc)
}

type failingBatch struct{ store.Batch }

func (failingBatch) WriteSync() error { return errors.New("disk full") }

type failingStore struct{ store.Store }

func (s failingStore) NewBatch() store.Batch { return failingBatch{s.Store.NewBatch()} }

func TestIndexCommitFailure(t *testing.T) {
	s, err := store.Open("pipeline", store.BackendMemDB, "")
	require.NoError(t, err)
	defer s.Close()

	eng := &mocks.Engine{}
	eng.On("CurrentHeight").Return(uint32(1))
	p := indexer.NewPipeline(indexer.PipelineArgs{Store: failingStore{s}, Heights: eng})

	err = p.Index(context.Background(), executedTx(60, halt(refund(hash160(1), hash160(2), 1))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, countKeys(t, s))

	_, ok, err := indexer.LastIndexed(s)
	require.NoError(t, err)
	assert.False(t, ok)
}
