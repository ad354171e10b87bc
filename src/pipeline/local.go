package pipeline

import (
	"context"

	"diaglog/src/broker"
	"diaglog/src/logger"
	"diaglog/src/store"
)

// NewLocal creates a pipeline over the in-memory broker with both agents
// running in-process. Reports and statuses land in a MemoryStore.
func NewLocal(engine *Engine, log logger.Logger) *Pipeline {
	memBroker := broker.NewInMemoryBroker()
	memStore := store.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	Start(ctx, memBroker, engine, memStore, log)

	return &Pipeline{
		broker: memBroker,
		store:  memStore,
		log:    log,
		stop:   cancel,
	}
}
