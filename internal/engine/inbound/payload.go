// Package inbound turns raw provider payloads into typed variants. It is the
// only place the shape of a provider body is interpreted.
package inbound

import (
	"encoding/json"
	"errors"
	"fmt"

	"hookline/internal/pkg/validator"
	"hookline/internal/platform/models"
)

var (
	ErrMissingCorrelation = errors.New("payload has no correlation id")
	ErrUnknownSource      = errors.New("unknown webhook source")
)

// Payload is implemented by ElevenLabsCall, SignWellEvent and DailyEvent only.
type Payload interface {
	Source() models.Source
	Kind() string
	CorrelationID() string
	sealed()
}

func decode(source models.Source, raw []byte) (Payload, error) {
	var p Payload
	switch source {
	case models.SourceElevenLabs:
		p = &ElevenLabsCall{}
	case models.SourceSignWell:
		p = &SignWellEvent{}
	case models.SourceDaily:
		p = &DailyEvent{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", source, err)
	}
	return p, nil
}

// Parse decodes and validates raw for the given source.
func Parse(source models.Source, raw []byte) (Payload, error) {
	p, err := decode(source, raw)
	if err != nil {
		return nil, err
	}

	if p.CorrelationID() == "" {
		return nil, fmt.Errorf("%s %s: %w", source, p.Kind(), ErrMissingCorrelation)
	}

	if err := validator.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", source, err)
	}
	return p, nil
}

// Envelope extracts the event kind and correlation id without validating the
// rest of the body. A missing correlation id is reported as
// ErrMissingCorrelation with the kind still filled in.
func Envelope(source models.Source, raw []byte) (kind string, correlationID string, err error) {
	p, err := decode(source, raw)
	if err != nil {
		return "", "", err
	}
	if p.CorrelationID() == "" {
		return p.Kind(), "", ErrMissingCorrelation
	}
	return p.Kind(), p.CorrelationID(), nil
}
