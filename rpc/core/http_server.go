package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/urfave/negroni"

	"github.com/neonotify/neonotify/config"
	"github.com/neonotify/neonotify/libs/log"
)

// Serve serves handler on listener until ctx is canceled, then shuts the
// server down gracefully.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler, cfg *config.RPCConfig, logger log.Logger) error {
	logger.Info("serving query API", "addr", listener.Addr().String())
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(listener) }()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutting down query API: %w", err)
		}
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("query API stopped", "err", err)
		return err
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}, prettify bool) {
	var (
		bz  []byte
		err error
	)
	if prettify {
		bz, err = json.MarshalIndent(v, "", "  ")
	} else {
		bz, err = json.Marshal(v)
	}
	if err != nil {
		panic(fmt.Errorf("encoding response: %w", err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(bz)
}

// logRequests logs every served request with its status and latency.
func logRequests(logger log.Logger) func(http.ResponseWriter, *http.Request, http.HandlerFunc) {
	return func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		begin := time.Now()
		next(w, r)

		status := http.StatusOK
		if rw, ok := w.(negroni.ResponseWriter); ok && rw.Status() != 0 {
			status = rw.Status()
		}
		logger.Debug("served query API request",
			"method", r.Method,
			"url", r.URL.String(),
			"status", status,
			"duration", time.Since(begin).String(),
			"remoteAddr", r.RemoteAddr,
		)
	}
}

// recoveryLogger routes panics caught by negroni to the service logger.
type recoveryLogger struct {
	logger log.Logger
}

func (l recoveryLogger) Printf(format string, v ...interface{}) {
	l.logger.Error("panic in query API handler", "err", fmt.Sprintf(format, v...))
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("panic in query API handler", "err", fmt.Sprint(v...))
}
