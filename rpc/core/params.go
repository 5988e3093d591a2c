package core

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/neonotify/neonotify/internal/indexer"
	"github.com/neonotify/neonotify/rpc/coretypes"
)

// pageQuery holds the query string parameters shared by every listing route.
type pageQuery struct {
	Page     int
	PageSize int
	Filter   indexer.Filter
	Prettify bool
}

func parsePageQuery(r *http.Request) (pageQuery, error) {
	q := pageQuery{
		Page:     1,
		PageSize: coretypes.DefaultPageSize,
		Filter:   indexer.NewFilter(),
		Prettify: true,
	}
	values := r.URL.Query()

	var err error
	if q.Page, err = intParam(values.Get("page"), q.Page); err != nil {
		return q, fmt.Errorf("page: %w", err)
	}
	if q.PageSize, err = intParam(values.Get("pagesize"), q.PageSize); err != nil {
		return q, fmt.Errorf("pagesize: %w", err)
	}
	if q.Filter.AfterBlock, err = blockParam(values.Get("afterBlock")); err != nil {
		return q, fmt.Errorf("afterBlock: %w", err)
	}
	if q.Filter.BeforeBlock, err = blockParam(values.Get("beforeBlock")); err != nil {
		return q, fmt.Errorf("beforeBlock: %w", err)
	}
	q.Filter.EventType = values.Get("type")

	if s := values.Get("prettify"); s != "" {
		if q.Prettify, err = strconv.ParseBool(s); err != nil {
			return q, fmt.Errorf("prettify: %w", err)
		}
	}
	return q, nil
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// blockParam parses a block bound. Negative values mean unset.
func blockParam(s string) (int64, error) {
	if s == "" {
		return indexer.Unset, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return indexer.Unset, nil
	}
	return v, nil
}
