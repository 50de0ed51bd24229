// Package base holds what every publisher shares: naming, a scoped logger
// and helpers for turning messages into broker-specific shapes.
package base

import (
	"fmt"

	"edge-gateway/internal/brokers"
	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
)

// BaseBroker is embedded by publisher implementations.
type BaseBroker struct {
	name   string
	logger logging.Logger
	config brokers.BrokerConfig
}

// NewBaseBroker validates config and scopes a logger to the broker.
func NewBaseBroker(name string, config brokers.BrokerConfig) (*BaseBroker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid %s config: %v", name, err))
	}

	logger := logging.Component("brokers").WithFields(
		logging.String("broker", name),
		logging.String("connection", config.GetConnectionString()),
	)

	return &BaseBroker{name: name, config: config, logger: logger}, nil
}

func (b *BaseBroker) Name() string {
	return b.name
}

func (b *BaseBroker) GetLogger() logging.Logger {
	return b.logger
}

func (b *BaseBroker) GetConfig() brokers.BrokerConfig {
	return b.config
}
