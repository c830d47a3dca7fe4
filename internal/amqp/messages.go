package amqp

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"biblioteca/internal/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errMalformedEvent = errors.New("malformed loan event")

// EncodeLoanEvent renders the message body published for event.
func EncodeLoanEvent(event core.LoanEvent) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeLoanEvent parses a message body. Bodies without a known type or a
// loan id are rejected.
func DecodeLoanEvent(data []byte) (core.LoanEvent, error) {
	var event core.LoanEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return core.LoanEvent{}, fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	switch event.Type {
	case core.LoanCreated, core.LoanReturned:
	default:
		return core.LoanEvent{}, fmt.Errorf("%w: unknown type %q", errMalformedEvent, event.Type)
	}
	if event.LoanID == "" {
		return core.LoanEvent{}, fmt.Errorf("%w: missing loan id", errMalformedEvent)
	}
	return event, nil
}
