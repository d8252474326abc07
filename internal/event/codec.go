package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned when a payload names an event type this build
// does not know.  Consumers normally treat it as a poison message.
var ErrUnknownType = errors.New("unknown event type")

// Envelope is the wire format published to the broker: the type
// discriminator next to the raw event payload, so consumers can decode
// without guessing.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Marshal serializes an event into its broker envelope.
func Marshal(ev DomainEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.EventType(), err)
	}
	return json.Marshal(Envelope{Type: ev.EventType(), Data: data})
}

// Unmarshal decodes a broker envelope back into a concrete event.
func Unmarshal(body []byte) (DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return Decode(env.Type, env.Data)
}

// Decode turns a type discriminator plus raw payload into a concrete event.
// The type switch is the single place new event types must be registered;
// replay and consumption both fail loudly on anything unlisted.
func Decode(eventType string, data []byte) (DomainEvent, error) {
	var ev DomainEvent
	switch eventType {
	case TypeReservationCreated:
		ev = &ReservationCreated{}
	case TypeReservationConfirmed:
		ev = &ReservationConfirmed{}
	case TypeReservationCancelled:
		ev = &ReservationCancelled{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, eventType)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", eventType, err)
	}
	return ev, nil
}
