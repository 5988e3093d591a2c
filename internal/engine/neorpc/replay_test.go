package neorpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neonotify/neonotify/internal/engine"
	"github.com/neonotify/neonotify/internal/indexer"
	"github.com/neonotify/neonotify/internal/store"
	"github.com/neonotify/neonotify/libs/log"
	"github.com/neonotify/neonotify/types"
)

func dump(t *testing.T, logs ...*types.ApplicationLog) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	for _, l := range logs {
		require.NoError(t, enc.Encode(l))
	}
	return buf
}

func atBlock(l *types.ApplicationLog, block uint32) *types.ApplicationLog {
	l.Block = block
	return l
}

func startService(ctx context.Context, t *testing.T, s store.Store, heights indexer.HeightProvider) *indexer.Service {
	t.Helper()
	p := indexer.NewPipeline(indexer.PipelineArgs{Store: s, Heights: heights})
	svc := indexer.NewService(indexer.ServiceArgs{Pipeline: p, Logger: log.TestingLogger()})
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(func() { _ = svc.Stop() })
	return svc
}

func TestReplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := store.Open("replay", store.BackendMemDB, "")
	require.NoError(t, err)
	defer s.Close()

	heights := new(engine.Height)
	svc := startService(ctx, t, s, heights)
	contract, alice, bob := filled(0xd0), filled(0x3a), filled(0x3b)

	in := dump(t,
		atBlock(transferLog(1, contract, alice, bob, 1), 0),
		atBlock(transferLog(2, contract, alice, bob, 2), 0),
		atBlock(transferLog(3, contract, alice, bob, 3), 5),
	)
	stats, err := Replay(ctx, in, ReplayArgs{Publisher: svc, Heights: heights, Store: s})
	require.NoError(t, err)
	assert.Equal(t, ReplayStats{Blocks: 2, Txs: 3}, stats)
	assert.EqualValues(t, 5, heights.CurrentHeight())

	q := indexer.NewQuery(s)
	recs, err := q.ByBlock(0, indexer.NewFilter())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.EqualValues(t, 1, recs[1].Index)

	recs, err = q.ByBlock(5, indexer.NewFilter())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "3", recs[0].Amount)

	synced, ok, err := indexer.SyncHeight(s)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 5, synced)

	// replaying the same dump extended by one block only adds the new block
	in = dump(t,
		atBlock(transferLog(1, contract, alice, bob, 1), 0),
		atBlock(transferLog(2, contract, alice, bob, 2), 0),
		atBlock(transferLog(3, contract, alice, bob, 3), 5),
		atBlock(transferLog(4, contract, alice, bob, 4), 6),
	)
	stats, err = Replay(ctx, in, ReplayArgs{Publisher: svc, Heights: heights, Store: s})
	require.NoError(t, err)
	assert.Equal(t, ReplayStats{Blocks: 1, Txs: 1, Skipped: 3}, stats)

	recs, err = q.ByContract(contract, indexer.NewFilter())
	require.NoError(t, err)
	assert.Len(t, recs, 4)
}

var errInterrupted = errors.New("interrupted")

// cutoffPublisher forwards the first limit transactions and then fails.
type cutoffPublisher struct {
	Publisher
	limit int
}

func (p *cutoffPublisher) Publish(ctx context.Context, tx *types.ExecutedTx) error {
	if p.limit == 0 {
		return errInterrupted
	}
	p.limit--
	return p.Publisher.Publish(ctx, tx)
}

func TestReplayResumesInterruptedBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := store.Open("replay", store.BackendMemDB, "")
	require.NoError(t, err)
	defer s.Close()

	heights := new(engine.Height)
	svc := startService(ctx, t, s, heights)
	contract, alice, bob := filled(0xd2), filled(0x5a), filled(0x5b)
	logs := func() *bytes.Buffer {
		return dump(t,
			atBlock(transferLog(1, contract, alice, bob, 1), 2),
			atBlock(transferLog(2, contract, alice, bob, 2), 3),
			atBlock(transferLog(3, contract, alice, bob, 3), 3),
		)
	}

	// the run stops after the first transaction of block 3
	_, err = Replay(ctx, logs(), ReplayArgs{
		Publisher: &cutoffPublisher{Publisher: svc, limit: 2},
		Heights:   heights,
		Store:     s,
	})
	require.ErrorIs(t, err, errInterrupted)
	require.NoError(t, svc.Sync(ctx))

	synced, _, err := indexer.SyncHeight(s)
	require.NoError(t, err)
	assert.EqualValues(t, 2, synced)

	stats, err := Replay(ctx, logs(), ReplayArgs{Publisher: svc, Heights: heights, Store: s})
	require.NoError(t, err)
	assert.Equal(t, ReplayStats{Blocks: 1, Txs: 1, Skipped: 2}, stats)

	recs, err := indexer.NewQuery(s).ByBlock(3, indexer.NewFilter())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for i, want := range []string{"2", "3"} {
		assert.Equal(t, want, recs[i].Amount)
		assert.EqualValues(t, i, recs[i].Index)
	}

	recs, err = indexer.NewQuery(s).ByAddress(bob, indexer.NewFilter())
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestReplayRejectsBadInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	contract, alice, bob := filled(0xd1), filled(0x4a), filled(0x4b)
	testCases := []struct {
		name  string
		input func(t *testing.T) *bytes.Buffer
		err   string
	}{
		{"out of order", func(t *testing.T) *bytes.Buffer {
			return dump(t,
				atBlock(transferLog(1, contract, alice, bob, 1), 3),
				atBlock(transferLog(2, contract, alice, bob, 1), 2),
			)
		}, "block 2 after block 3"},
		{"bad json", func(t *testing.T) *bytes.Buffer {
			return bytes.NewBufferString(`{"txid": "0x01"`)
		}, "application log 1"},
		{"bad txid", func(t *testing.T) *bytes.Buffer {
			return bytes.NewBufferString(`{"txid": "nope", "block": 1, "executions": []}`)
		}, "txid"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s, err := store.Open("replay", store.BackendMemDB, "")
			require.NoError(t, err)
			defer s.Close()

			heights := new(engine.Height)
			svc := startService(ctx, t, s, heights)
			_, err = Replay(ctx, tc.input(t), ReplayArgs{Publisher: svc, Heights: heights, Store: s})
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.err), err.Error())
		})
	}
}
