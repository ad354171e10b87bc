package pipeline

import (
	"testing"

	"diaglog/src/config"
)

func TestDetectMode(t *testing.T) {
	tests := []struct {
		name     string
		broker   config.BrokerConfig
		expected Mode
	}{
		{
			name:     "Local mode - memory broker",
			broker:   config.BrokerConfig{Type: config.BrokerMemory, Brokers: []string{"localhost:19092"}},
			expected: LocalMode,
		},
		{
			name:     "Local mode - redpanda without brokers",
			broker:   config.BrokerConfig{Type: config.BrokerRedpanda},
			expected: LocalMode,
		},
		{
			name:     "Distributed mode - with brokers",
			broker:   config.BrokerConfig{Type: config.BrokerRedpanda, Brokers: []string{"localhost:19092"}},
			expected: DistributedMode,
		},
		{
			name:     "Distributed mode - multiple brokers",
			broker:   config.BrokerConfig{Type: config.BrokerRedpanda, Brokers: []string{"broker1:9092", "broker2:9092"}},
			expected: DistributedMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Broker = tt.broker
			if mode := DetectMode(cfg); mode != tt.expected {
				t.Errorf("Expected mode %v, got %v", tt.expected, mode)
			}
		})
	}
}

func TestModeString(t *testing.T) {
	if LocalMode.String() != "local" {
		t.Errorf("Expected 'local', got %s", LocalMode.String())
	}
	if DistributedMode.String() != "distributed" {
		t.Errorf("Expected 'distributed', got %s", DistributedMode.String())
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 2
	cfg.MaxSamples = 7
	cfg.Modules.Gateways = []string{"726"}
	cfg.Ingest.XMLKeywords = []string{"nrc"}

	opts := OptionsFromConfig(cfg)
	if opts.Workers != 2 || opts.MaxSamples != 7 {
		t.Errorf("Unexpected options %+v", opts)
	}
	if len(opts.Modules.Gateways) != 1 || opts.Modules.Gateways[0] != "726" {
		t.Errorf("Expected gateway override, got %v", opts.Modules.Gateways)
	}
	if len(opts.Ingest.XMLKeywords) != 1 {
		t.Errorf("Expected keyword override, got %v", opts.Ingest.XMLKeywords)
	}
	if opts.Ingest.MaxLineBytes != cfg.Ingest.MaxLineBytes {
		t.Errorf("Expected max line bytes %d, got %d", cfg.Ingest.MaxLineBytes, opts.Ingest.MaxLineBytes)
	}
}

func TestNewBroker_UnknownType(t *testing.T) {
	cfg := config.Default()
	cfg.Broker.Type = "nats"
	if _, err := NewBroker(cfg, nil); err == nil {
		t.Error("Expected error for unknown broker type")
	}
}
