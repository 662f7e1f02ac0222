package bootstrap

import (
	"fmt"

	coreconfig "github.com/telefoot/telefoot-bot/core/config"
	"github.com/telefoot/telefoot-bot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
// The type parameter carries whatever durable storage the application opens
// (snapshot stores, databases, caches).
type Options[S any] struct {
	Config *coreconfig.Config

	LoggerInit  func(*coreconfig.Config) error
	OpenStorage func(*coreconfig.Config) (S, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result[S any] struct {
	Storage S
}

// Run initializes the logger and opens the application storage.
func Run[S any](opts Options[S]) (*Result[S], error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	var res Result[S]
	if opts.OpenStorage != nil {
		storage, err := opts.OpenStorage(opts.Config)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: storage initialization failed: %w", err)
		}
		res.Storage = storage
	}

	return &res, nil
}
