package broker

import "errors"

// Sentinel errors for broker operations.
var (
	ErrConnectionFailed  = errors.New("broker: connection failed")
	ErrNotConnected      = errors.New("broker: not connected")
	ErrInvalidTopic      = errors.New("broker: invalid topic")
	ErrInvalidQoS        = errors.New("broker: invalid QoS level")
	ErrPublishFailed     = errors.New("broker: publish failed")
	ErrSubscribeFailed   = errors.New("broker: subscribe failed")
	ErrUnsubscribeFailed = errors.New("broker: unsubscribe failed")
)
