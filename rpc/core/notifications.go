package core

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/neonotify/neonotify/rpc/coretypes"
	"github.com/neonotify/neonotify/types"
)

// Response messages, one per route.
const (
	msgAddress  = "Results for address"
	msgContract = "Results for contract"
	msgBlock    = "Results for a block"
	msgTx       = "Results for TX"
	msgTokens   = "Results for tokens"

	msgInvalidAddress = "Invalid Address"
	msgInvalidHash    = "Invalid Script Hash"
	msgInvalidHeight  = "Invalid Block Height"
	msgInvalidTx      = "Invalid TX Hash"
)

// NotificationsByAddress serves /v1/notifications/addr/{addr}. The address
// may be given in base58 form or as a script hash.
//
// ```shell
// curl 'localhost:8080/v1/notifications/addr/AKibPRzkoZpHnPkF6qvuW2Q4hG9gKBwGpR?type=transfer'
// ```
func (env *Environment) NotificationsByAddress(w http.ResponseWriter, r *http.Request) {
	q, ok := env.pageQuery(w, r)
	if !ok {
		return
	}
	addr, err := types.ParseAddressOrHash(mux.Vars(r)["addr"])
	if err != nil {
		env.writeInvalid(w, q, msgInvalidAddress)
		return
	}
	recs, err := env.Query.ByAddress(addr, q.Filter)
	env.writeRecords(w, r, q, msgAddress, recs, err)
}

// NotificationsByContract serves /v1/notifications/contract/{contract}.
func (env *Environment) NotificationsByContract(w http.ResponseWriter, r *http.Request) {
	q, ok := env.pageQuery(w, r)
	if !ok {
		return
	}
	contract, err := types.ParseUInt160(mux.Vars(r)["contract"])
	if err != nil {
		env.writeInvalid(w, q, msgInvalidHash)
		return
	}
	recs, err := env.Query.ByContract(contract, q.Filter)
	env.writeRecords(w, r, q, msgContract, recs, err)
}

// NotificationsByBlock serves /v1/notifications/block/{height}.
func (env *Environment) NotificationsByBlock(w http.ResponseWriter, r *http.Request) {
	q, ok := env.pageQuery(w, r)
	if !ok {
		return
	}
	height, err := strconv.ParseUint(mux.Vars(r)["height"], 10, 32)
	if err != nil {
		env.writeInvalid(w, q, msgInvalidHeight)
		return
	}
	recs, err := env.Query.ByBlock(uint32(height), q.Filter)
	env.writeRecords(w, r, q, msgBlock, recs, err)
}

// NotificationsByTx serves /v1/notifications/tx/{tx}.
func (env *Environment) NotificationsByTx(w http.ResponseWriter, r *http.Request) {
	q, ok := env.pageQuery(w, r)
	if !ok {
		return
	}
	tx, err := types.ParseUInt256(mux.Vars(r)["tx"])
	if err != nil {
		env.writeInvalid(w, q, msgInvalidTx)
		return
	}
	recs, err := env.Query.ByTransaction(tx, q.Filter)
	env.writeRecords(w, r, q, msgTx, recs, err)
}

// TokenList serves /v1/tokens. Only the block bounds of the query apply.
func (env *Environment) TokenList(w http.ResponseWriter, r *http.Request) {
	q, ok := env.pageQuery(w, r)
	if !ok {
		return
	}
	tokens, err := env.Tokens.List(q.Filter)
	if err != nil {
		env.writeError(w, r, q, err)
		return
	}
	results := make([]interface{}, len(tokens))
	for i, t := range tokens {
		results[i] = t
	}
	env.writePage(w, q, coretypes.NewResultNotifications(env.currentHeight(), msgTokens, results))
}

// Health serves /health.
func (env *Environment) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &coretypes.ResultHealth{CurrentHeight: env.currentHeight()}, false)
}

func (env *Environment) pageQuery(w http.ResponseWriter, r *http.Request) (pageQuery, bool) {
	q, err := parsePageQuery(r)
	if err != nil {
		res := coretypes.NewResultNotifications(env.currentHeight(), "invalid query: "+err.Error(), nil)
		writeJSON(w, http.StatusBadRequest, res, true)
		return q, false
	}
	return q, true
}

func (env *Environment) writeRecords(
	w http.ResponseWriter,
	r *http.Request,
	q pageQuery,
	message string,
	recs []types.NotificationRecord,
	err error,
) {
	if err != nil {
		env.writeError(w, r, q, err)
		return
	}
	results := make([]interface{}, len(recs))
	for i := range recs {
		results[i] = recs[i]
	}
	env.writePage(w, q, coretypes.NewResultNotifications(env.currentHeight(), message, results))
}

func (env *Environment) writePage(w http.ResponseWriter, q pageQuery, res *coretypes.ResultNotifications) {
	res.Paginate(q.Page, q.PageSize)
	writeJSON(w, http.StatusOK, res, q.Prettify)
}

// writeInvalid answers a request whose path argument cannot be parsed. It is
// not an error: the envelope is empty and carries the reason.
func (env *Environment) writeInvalid(w http.ResponseWriter, q pageQuery, message string) {
	res := coretypes.NewResultNotifications(env.currentHeight(), message, nil)
	res.Page = q.Page
	res.PageLen = coretypes.ValidatePageSize(q.PageSize)
	writeJSON(w, http.StatusOK, res, q.Prettify)
}

func (env *Environment) writeError(w http.ResponseWriter, r *http.Request, q pageQuery, err error) {
	env.logger().Error("query failed", "url", r.URL.String(), "err", err)
	res := coretypes.NewResultNotifications(env.currentHeight(), "internal error", nil)
	writeJSON(w, http.StatusInternalServerError, res, q.Prettify)
}
