package pipeline

import (
	"fmt"

	"diaglog/src/broker"
	"diaglog/src/config"
	"diaglog/src/logger"
	"diaglog/src/store"
)

// NewDistributed creates a pipeline publishing to Redpanda. The agents run
// elsewhere (`diaglog serve`); only submissions made through this pipeline
// are tracked in its store, and reports are read back from the reports topic.
func NewDistributed(cfg *config.Config, log logger.Logger) (*Pipeline, error) {
	brk, err := NewBroker(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		broker: brk,
		store:  store.NewMemoryStore(),
		log:    log,
	}, nil
}

// NewBroker creates the broker named by the configuration.
func NewBroker(cfg *config.Config, log logger.Logger) (broker.Broker, error) {
	switch cfg.Broker.Type {
	case config.BrokerRedpanda:
		brk, err := broker.NewRedpandaBroker(broker.RedpandaConfig{
			Brokers:  cfg.Broker.Brokers,
			ClientID: cfg.Broker.ClientID,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redpanda broker: %w", err)
		}
		return brk, nil
	case config.BrokerMemory, "":
		return broker.NewInMemoryBroker(), nil
	}
	return nil, fmt.Errorf("unknown broker type %q", cfg.Broker.Type)
}
