package config

import (
	"github.com/neonotify/neonotify/internal/store"
)

// DBContext specifies config information for loading a new DB.
type DBContext struct {
	ID     string
	Config *Config
}

// DBProvider takes a DBContext and returns an instantiated DB.
type DBProvider func(*DBContext) (store.Store, error)

// DefaultDBProvider returns a database using the DBBackend and DBDir
// specified in the Config.
func DefaultDBProvider(ctx *DBContext) (store.Store, error) {
	return store.Open(ctx.ID, ctx.Config.DBBackend, ctx.Config.DBDir())
}
