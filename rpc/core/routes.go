package core

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/urfave/negroni"

	"github.com/neonotify/neonotify/config"
)

// Router returns the query API routes without any middleware.
func (env *Environment) Router() *mux.Router {
	r := mux.NewRouter()

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/notifications/addr/{addr}", env.NotificationsByAddress).Methods(http.MethodGet)
	v1.HandleFunc("/notifications/contract/{contract}", env.NotificationsByContract).Methods(http.MethodGet)
	v1.HandleFunc("/notifications/block/{height}", env.NotificationsByBlock).Methods(http.MethodGet)
	v1.HandleFunc("/notifications/tx/{tx}", env.NotificationsByTx).Methods(http.MethodGet)
	v1.HandleFunc("/transaction/{tx}", env.NotificationsByTx).Methods(http.MethodGet)
	v1.HandleFunc("/tokens", env.TokenList).Methods(http.MethodGet)

	r.HandleFunc("/health", env.Health).Methods(http.MethodGet)
	return r
}

// Handler returns the full query API handler: panic recovery, request
// logging and, when configured, CORS around Router.
func (env *Environment) Handler(cfg *config.RPCConfig) http.Handler {
	n := negroni.New()
	recovery := negroni.NewRecovery()
	recovery.PrintStack = false
	recovery.Logger = recoveryLogger{env.logger()}
	n.Use(recovery)
	n.Use(negroni.HandlerFunc(logRequests(env.logger())))
	n.UseHandler(env.Router())

	if !cfg.IsCorsEnabled() {
		return n
	}
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: cfg.CORSAllowedMethods,
		AllowedHeaders: cfg.CORSAllowedHeaders,
	})
	return c.Handler(n)
}
