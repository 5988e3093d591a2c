package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neonotify/neonotify/config"
	"github.com/neonotify/neonotify/internal/indexer"
	"github.com/neonotify/neonotify/internal/store"
	"github.com/neonotify/neonotify/internal/token"
	"github.com/neonotify/neonotify/libs/log"
	"github.com/neonotify/neonotify/types"
)

type fixedHeight uint32

func (h *fixedHeight) CurrentHeight() uint32 { return uint32(*h) }

type response struct {
	CurrentHeight uint32            `json:"current_height"`
	Message       string            `json:"message"`
	Results       []json.RawMessage `json:"results"`
	Page          int               `json:"page"`
	PageLen       int               `json:"page_len"`
	Total         int               `json:"total"`
	TotalPages    int               `json:"total_pages"`
}

func filled(b byte) types.UInt160 {
	var h types.UInt160
	for i := range h {
		h[i] = b
	}
	return h
}

func txHash(n int) types.UInt256 {
	h, err := types.ParseUInt256(fmt.Sprintf("%064x", n))
	if err != nil {
		panic(err)
	}
	return h
}

var (
	contract = filled(0xc0)
	alice    = filled(0x0a)
	bob      = filled(0x0b)
)

type fixture struct {
	env     *Environment
	handler http.Handler
	height  *fixedHeight
}

// newFixture indexes five transfers from alice to bob at heights 1..5 and a
// refund to alice at height 6, and registers one token at height 3.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open("api", store.BackendMemDB, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	height := new(fixedHeight)
	p := indexer.NewPipeline(indexer.PipelineArgs{Store: s, Heights: height})
	for i := 1; i <= 6; i++ {
		*height = fixedHeight(i - 1)
		state := types.Array{
			types.ByteArray("transfer"),
			types.ByteArray(alice[:]),
			types.ByteArray(bob[:]),
			types.NewInteger(int64(i * 100)),
		}
		if i == 6 {
			state = types.Array{types.ByteArray("refund"), types.ByteArray(alice[:]), types.NewInteger(5)}
		}
		tx := &types.ExecutedTx{
			Hash: txHash(i),
			Results: []types.ExecutionResult{{
				VMState:       "HALT",
				Notifications: []types.NotifyEvent{{ScriptHash: contract, State: state}},
			}},
		}
		require.NoError(t, p.Index(context.Background(), tx))
	}
	*height = 6

	reg := token.NewRegistry(s, 1<<20, nil)
	b := indexer.NewBatch(s)
	require.NoError(t, reg.Store(b, &types.TokenDescriptor{
		Block: 3,
		Tx:    txHash(3).String(),
		Token: types.TokenInfo{
			Name:            "Test Token",
			Symbol:          "TST",
			Decimals:        8,
			ScriptHash:      contract.String(),
			ContractAddress: types.ToAddress(contract),
		},
	}))
	require.NoError(t, b.Commit())

	env := &Environment{
		Query:   indexer.NewQuery(s),
		Tokens:  reg,
		Heights: height,
		Logger:  log.TestingLogger(),
	}
	return &fixture{env: env, handler: env.Handler(config.TestRPCConfig()), height: height}
}

func (f *fixture) get(t *testing.T, target string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var res response
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	}
	return rec, res
}

func records(t *testing.T, raw []json.RawMessage) []types.NotificationRecord {
	t.Helper()
	out := make([]types.NotificationRecord, len(raw))
	for i, r := range raw {
		require.NoError(t, json.Unmarshal(r, &out[i]))
	}
	return out
}

func TestNotificationsByAddress(t *testing.T) {
	f := newFixture(t)

	testCases := []struct {
		name    string
		target  string
		message string
		total   int
		amounts []string
	}{
		{"by base58 address", "/v1/notifications/addr/" + types.ToAddress(bob), msgAddress, 5,
			[]string{"100", "200", "300", "400", "500"}},
		{"by script hash", "/v1/notifications/addr/" + alice.String(), msgAddress, 6,
			[]string{"100", "200", "300", "400", "500", "5"}},
		{"by event type", "/v1/notifications/addr/" + alice.String() + "?type=refund", msgAddress, 1,
			[]string{"5"}},
		{"after block", "/v1/notifications/addr/" + bob.String() + "?afterBlock=3", msgAddress, 2,
			[]string{"400", "500"}},
		{"block window", "/v1/notifications/addr/" + bob.String() + "?afterBlock=1&beforeBlock=4", msgAddress, 2,
			[]string{"200", "300"}},
		{"negative bound is unset", "/v1/notifications/addr/" + bob.String() + "?afterBlock=-1", msgAddress, 5,
			[]string{"100", "200", "300", "400", "500"}},
		{"unknown address", "/v1/notifications/addr/" + filled(0x99).String(), "no results", 0, nil},
		{"malformed address", "/v1/notifications/addr/nope", msgInvalidAddress, 0, nil},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec, res := f.get(t, tc.target)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.message, res.Message)
			assert.Equal(t, tc.total, res.Total)
			assert.EqualValues(t, 6, res.CurrentHeight)
			assert.NotNil(t, res.Results)

			var amounts []string
			for _, r := range records(t, res.Results) {
				amounts = append(amounts, r.Amount)
			}
			assert.Equal(t, tc.amounts, amounts)
		})
	}
}

func TestNotificationsPagination(t *testing.T) {
	f := newFixture(t)
	base := "/v1/notifications/contract/" + contract.String()

	_, res := f.get(t, base+"?pagesize=4&page=2")
	assert.Equal(t, msgContract, res.Message)
	assert.Equal(t, 6, res.Total)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, 4, res.PageLen)
	assert.Equal(t, 2, res.Page)
	recs := records(t, res.Results)
	require.Len(t, recs, 2)
	assert.Equal(t, "500", recs[0].Amount)
	assert.Equal(t, types.EventRefund, recs[1].NotifyType)

	_, res = f.get(t, base+"?pagesize=4&page=3")
	assert.Equal(t, "invalid page", res.Message)
	assert.Empty(t, res.Results)

	_, res = f.get(t, base+"?page=0")
	assert.Equal(t, "invalid page", res.Message)

	_, res = f.get(t, base+"?pagesize=100000")
	assert.Equal(t, 1000, res.PageLen)
	assert.Len(t, res.Results, 6)

	rec, res := f.get(t, base+"?page=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, res.Message, "page")
}

func TestNotificationsByBlockAndTx(t *testing.T) {
	f := newFixture(t)

	_, res := f.get(t, "/v1/notifications/block/4")
	assert.Equal(t, msgBlock, res.Message)
	recs := records(t, res.Results)
	require.Len(t, recs, 1)
	assert.Equal(t, "400", recs[0].Amount)
	assert.EqualValues(t, 4, recs[0].Block)
	assert.EqualValues(t, 0, recs[0].Index)

	_, res = f.get(t, "/v1/notifications/block/12345")
	assert.Equal(t, "no results", res.Message)

	_, res = f.get(t, "/v1/notifications/block/-3")
	assert.Equal(t, msgInvalidHeight, res.Message)

	for _, target := range []string{
		"/v1/notifications/tx/" + txHash(2).String(),
		"/v1/transaction/" + txHash(2).String(),
	} {
		_, res = f.get(t, target)
		assert.Equal(t, msgTx, res.Message)
		recs = records(t, res.Results)
		require.Len(t, recs, 1)
		assert.Equal(t, txHash(2).String(), recs[0].Tx)
	}

	_, res = f.get(t, "/v1/notifications/tx/0x1234")
	assert.Equal(t, msgInvalidTx, res.Message)

	_, res = f.get(t, "/v1/notifications/contract/zz")
	assert.Equal(t, msgInvalidHash, res.Message)
}

func TestTokens(t *testing.T) {
	f := newFixture(t)

	_, res := f.get(t, "/v1/tokens")
	assert.Equal(t, msgTokens, res.Message)
	require.Len(t, res.Results, 1)

	var desc types.TokenDescriptor
	require.NoError(t, json.Unmarshal(res.Results[0], &desc))
	assert.Equal(t, "TST", desc.Token.Symbol)
	assert.Equal(t, types.ToAddress(contract), desc.Token.ContractAddress)

	_, res = f.get(t, "/v1/tokens?afterBlock=3")
	assert.Equal(t, "no results", res.Message)

	_, res = f.get(t, "/v1/tokens?beforeBlock=4&type=ignored")
	assert.Len(t, res.Results, 1)
}

func TestRouterServesTokenList(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/tokens?prettify=false", nil)
	rec := httptest.NewRecorder()
	f.env.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, msgTokens, res.Message)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Results, 1)
}

func TestPrettify(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.get(t, "/v1/tokens")
	assert.True(t, strings.Contains(rec.Body.String(), "\n  "))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec, _ = f.get(t, "/v1/tokens?prettify=false")
	assert.False(t, strings.Contains(rec.Body.String(), "\n"))
}

func TestHealthAndRouting(t *testing.T) {
	f := newFixture(t)
	*f.height = 42

	rec, res := f.get(t, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 42, res.CurrentHeight)

	rec, _ = f.get(t, "/v1/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/tokens", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	cfg := config.TestRPCConfig()
	cfg.CORSAllowedOrigins = []string{"https://explorer.example"}
	h := f.env.Handler(cfg)

	req := httptest.NewRequest(http.MethodGet, "/v1/tokens", nil)
	req.Header.Set("Origin", "https://explorer.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://explorer.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/tokens", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoversFromPanics(t *testing.T) {
	env := &Environment{Logger: log.TestingLogger()}
	h := env.Handler(config.TestRPCConfig())

	// a nil Heights makes every handler panic
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
