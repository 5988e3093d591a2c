package node

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neonotify/neonotify/config"
	"github.com/neonotify/neonotify/internal/indexer"
	"github.com/neonotify/neonotify/libs/log"
	"github.com/neonotify/neonotify/rpc/coretypes"
)

func getJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestNodeServesExistingIndex(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf := config.TestConfig().SetRoot(t.TempDir())
	n, err := New(conf, log.TestingLogger())
	require.NoError(t, err)
	require.NoError(t, indexer.SetSyncHeight(n.Store(), 77))

	require.NoError(t, n.Start(ctx))
	assert.True(t, n.IsRunning())
	assert.True(t, n.Indexer().IsRunning())

	base := fmt.Sprintf("http://%s", n.RPCAddr())
	var health coretypes.ResultHealth
	getJSON(t, base+"/health", &health)
	assert.EqualValues(t, 77, health.CurrentHeight)

	var res coretypes.ResultNotifications
	getJSON(t, base+"/v1/tokens", &res)
	assert.Equal(t, coretypes.MessageNoResults, res.Message)

	cancel()
	n.Wait()
	assert.False(t, n.Indexer().IsRunning())
}

func TestNodeFollowsConfiguredEngine(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	polled := make(chan struct{}, 1)
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int    `json:"id"`
			Method string `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		select {
		case polled <- struct{}{}:
		default:
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":0}`, req.ID)
	}))
	defer engine.Close()

	conf := config.TestConfig().SetRoot(t.TempDir())
	conf.Engine.RPCAddress = engine.URL
	n, err := New(conf, log.TestingLogger())
	require.NoError(t, err)
	require.NoError(t, n.Start(ctx))

	select {
	case <-polled:
	case <-time.After(5 * time.Second):
		t.Fatal("follower never polled the node")
	}

	require.NoError(t, n.Stop())
	select {
	case <-n.Failed():
		t.Fatal("indexer must not fail on a clean stop")
	default:
	}
	assert.NoError(t, n.Err())
}

func TestNodeRejectsBadListenAddress(t *testing.T) {
	conf := config.TestConfig().SetRoot(t.TempDir())
	conf.RPC.ListenAddress = "256.0.0.1:bad"
	n, err := New(conf, log.TestingLogger())
	require.NoError(t, err)

	err = n.Start(context.Background())
	require.Error(t, err)
	assert.False(t, n.Indexer().IsRunning())
}
