package bus

import (
	"fmt"

	"github.com/opensource-finance/premarket/internal/domain"
)

// New creates a new event bus based on configuration. "channel" is the
// single-node default; "nats" shares the run event stream across nodes.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
