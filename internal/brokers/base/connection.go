package base

import (
	"context"
	stderrors "errors"

	"edge-gateway/internal/common/errors"
)

// StandardHealthCheck reports a connection error while client is unset.
func StandardHealthCheck(connected bool, brokerType string) error {
	if !connected {
		return errors.ConnectionError(brokerType+" client not initialized", nil)
	}
	return nil
}

// PublishError wraps a delivery failure with the broker and topic it hit.
func PublishError(brokerType, topic string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.TimeoutError(brokerType + " publish").WithContext("topic", topic)
	}
	return errors.ConnectionError("failed to publish to "+brokerType, err).WithContext("topic", topic)
}
