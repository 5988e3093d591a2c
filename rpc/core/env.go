package core

import (
	"github.com/neonotify/neonotify/internal/indexer"
	"github.com/neonotify/neonotify/internal/token"
	"github.com/neonotify/neonotify/libs/log"
)

// Environment contains the objects the query API reads from. Every field
// except Logger is required.
type Environment struct {
	Query   *indexer.Query
	Tokens  *token.Registry
	Heights indexer.HeightProvider
	Logger  log.Logger
}

func (env *Environment) currentHeight() uint32 {
	return env.Heights.CurrentHeight()
}

func (env *Environment) logger() log.Logger {
	if env.Logger == nil {
		return log.NewNopLogger()
	}
	return env.Logger
}
