package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neonotify/neonotify/internal/store"
	"github.com/neonotify/neonotify/libs/log"
	"github.com/neonotify/neonotify/types"
)

// HeightProvider reports the chain height as seen by the execution engine.
type HeightProvider interface {
	CurrentHeight() uint32
}

// TokenRegistry records which contracts have been probed and the tokens
// found among them.
type TokenRegistry interface {
	HasBeenChecked(hash types.UInt160) (bool, error)
	MarkChecked(b *Batch, hash types.UInt160) error
	Store(b *Batch, desc *types.TokenDescriptor) error
}

// TokenDetector probes a contract for token metadata.
type TokenDetector interface {
	Detect(ctx context.Context, hash types.UInt160, txid types.UInt256) (*types.TokenDescriptor, error)
}

// PipelineArgs are arguments for constructing a Pipeline.
type PipelineArgs struct {
	Store    store.Store
	Heights  HeightProvider
	Registry TokenRegistry
	Detector TokenDetector
	Metrics  *Metrics
	Logger   log.Logger
}

// Pipeline is the write path of the index. Index must not be called
// concurrently; Service serializes calls.
type Pipeline struct {
	store    store.Store
	heights  HeightProvider
	registry TokenRegistry
	detector TokenDetector
	metrics  *Metrics
	logger   log.Logger
}

// NewPipeline constructs a Pipeline. Registry and Detector are optional;
// without them no token detection takes place.
func NewPipeline(args PipelineArgs) *Pipeline {
	p := &Pipeline{
		store:    args.Store,
		heights:  args.Heights,
		registry: args.Registry,
		detector: args.Detector,
		metrics:  args.Metrics,
		logger:   args.Logger,
	}
	if p.metrics == nil {
		p.metrics = NopMetrics()
	}
	if p.logger == nil {
		p.logger = log.NewNopLogger()
	}
	return p
}

// Index writes every notification of tx into the index with a single atomic
// batch, together with a checkpoint naming tx. Faulted execution results are
// ignored, and notifications that cannot be decoded are logged and skipped. An error is returned only when
// the batch cannot be staged or committed, in which case nothing of tx has
// been written.
func (p *Pipeline) Index(ctx context.Context, tx *types.ExecutedTx) error {
	start := time.Now()

	// The engine raises the event before its own height advances.
	height := p.heights.CurrentHeight() + 1
	txid := tx.Hash.String()

	b := NewBatch(p.store)
	defer b.Close()

	indexed := make(map[string]int)
	probed := false
	for _, res := range tx.Results {
		if res.Faulted() {
			p.logger.Debug("skipping faulted execution", "tx", txid, "vmstate", res.VMState)
			continue
		}

		for _, n := range res.Notifications {
			// Only the first notification's contract is considered for
			// token detection.
			if !probed {
				probed = true
				p.checkContract(ctx, b, n.ScriptHash, tx.Hash)
			}

			ev, err := p.persist(b, n, height, tx.Hash)
			switch {
			case errors.Is(err, errStage):
				return fmt.Errorf("indexing tx %s: %w", txid, err)
			case errors.Is(err, ErrUntagged):
				p.metrics.NotificationsSkipped.Add(1)
				p.logger.Debug("skipping untagged notification", "tx", txid, "contract", n.ScriptHash.String())
			case err != nil:
				p.metrics.NotificationsSkipped.Add(1)
				p.logger.Error("could not index notification",
					"height", height,
					"tx", txid,
					"contract", n.ScriptHash.String(),
					"err", err,
				)
			default:
				indexed[eventClass(ev)]++
			}
		}
	}

	if err := stageCheckpoint(b, Checkpoint{Height: height, Tx: tx.Hash}); err != nil {
		return fmt.Errorf("indexing tx %s: %w", txid, err)
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("indexing tx %s: %w", txid, err)
	}

	for class, n := range indexed {
		p.metrics.NotificationsIndexed.With("event_class", class).Add(float64(n))
	}
	p.metrics.TransactionsIndexed.Add(1)
	p.metrics.IndexSeconds.Observe(time.Since(start).Seconds())
	p.metrics.Height.Set(float64(height))
	return nil
}

// checkContract runs token detection for a contract the registry has not
// seen. Failures never reach the caller.
func (p *Pipeline) checkContract(ctx context.Context, b *Batch, hash types.UInt160, txHash types.UInt256) {
	if p.registry == nil {
		return
	}
	checked, err := p.registry.HasBeenChecked(hash)
	if err != nil {
		p.logger.Error("failed to read contract marker", "contract", hash.String(), "err", err)
		return
	}
	if checked {
		return
	}
	if err := p.registry.MarkChecked(b, hash); err != nil {
		p.logger.Error("failed to mark contract checked", "contract", hash.String(), "err", err)
		return
	}
	if p.detector == nil {
		return
	}

	desc, err := p.detector.Detect(ctx, hash, txHash)
	if err != nil {
		p.logger.Debug("contract is not a token", "contract", hash.String(), "reason", err)
		return
	}
	if err := p.registry.Store(b, desc); err != nil {
		p.logger.Error("failed to store token", "contract", hash.String(), "err", err)
		return
	}
	p.metrics.TokensDetected.Add(1)
	p.logger.Info("detected token",
		"contract", hash.String(),
		"name", desc.Token.Name,
		"symbol", desc.Token.Symbol,
	)
}

// errStage marks failures to stage writes into the batch. The batch is
// unusable after one, so the whole transaction is abandoned.
var errStage = errors.New("staging index writes")

// persist decodes one notification and stages its record into every bucket
// it belongs to. Sequences are reserved for all buckets up front so a decode
// failure leaves no gap behind.
func (p *Pipeline) persist(b *Batch, n types.NotifyEvent, height uint32, txHash types.UInt256) (Event, error) {
	ev, err := Classify(n.State)
	if err != nil {
		return nil, err
	}

	rec := types.NotificationRecord{
		Contract: n.ScriptHash.String(),
		Block:    height,
		Tx:       txHash.String(),
	}
	if err := ev.Fill(&rec); err != nil {
		return nil, err
	}

	var slots []Slot
	for _, addr := range ev.Addresses() {
		slots = append(slots, Slot{Kind: KindAddress, Bucket: AddressBucket(addr)})
	}
	blockSlot := len(slots)
	slots = append(slots,
		Slot{Kind: KindBlock, Bucket: BlockBucket(height)},
		Slot{Kind: KindContract, Bucket: ContractBucket(n.ScriptHash)},
		Slot{Kind: KindTransaction, Bucket: TransactionBucket(txHash)},
	)

	seqs, err := b.Reserve(slots...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errStage, err)
	}
	rec.Index = seqs[blockSlot] - 1

	value, err := json.Marshal(rec)
	if err != nil {
		// Sequences are already reserved; a gap would follow.
		return nil, fmt.Errorf("%w: encoding record: %v", errStage, err)
	}
	for i, slot := range slots {
		if err := b.PutAt(slot.Kind, slot.Bucket, seqs[i], value); err != nil {
			return nil, fmt.Errorf("%w: %v", errStage, err)
		}
	}
	return ev, nil
}
