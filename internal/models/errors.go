package models

import "errors"

// Validation sentinel errors for ChannelConfig and Alert models.
var (
	ErrChannelIDRequired     = errors.New("channel id is required")
	ErrNameRequired          = errors.New("name is required")
	ErrInvalidMulticastGroup = errors.New("multicast_ip must be an IPv4 address in 224.0.0.0/4")
	ErrInvalidPort           = errors.New("multicast_port must be between 1 and 65535")
	ErrAlertTypeRequired     = errors.New("alert_type is required")
)

// ErrValidation wraps a field-level validation failure.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Field + ": " + e.Message
}
