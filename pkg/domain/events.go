package domain

import "encoding/json"

// Action classifies a change-feed event.
type Action string

// Change-feed actions delivered by the backend.
const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event is one backend-pushed change notification. Payload carries the row
// state after an insert or update and the prior state for a delete.
type Event struct {
	Table   string       `json:"table"`
	Action  Action       `json:"action"`
	RowID   string       `json:"row_id"`
	Payload EventPayload `json:"payload"`
}

// EventPayload wraps a JSON snapshot of the row a change touched. An
// undefined payload means the feed delivered no row state.
type EventPayload struct {
	defined bool
	raw     json.RawMessage
}

// NewEventPayload builds a payload wrapper from raw JSON. The bytes are
// cloned so callers cannot mutate shared state.
func NewEventPayload(raw json.RawMessage) EventPayload {
	p := EventPayload{defined: true}
	if raw != nil {
		p.raw = append(json.RawMessage(nil), raw...)
	}
	return p
}

// NewEventPayloadFromRow marshals a row into an EventPayload.
func NewEventPayloadFromRow(row Row) (EventPayload, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return EventPayload{}, err
	}
	return NewEventPayload(raw), nil
}

// Defined reports whether the payload was initialized.
func (p EventPayload) Defined() bool { return p.defined }

// Raw returns a cloned copy of the underlying JSON, or nil when undefined
// or empty.
func (p EventPayload) Raw() json.RawMessage {
	if !p.defined || len(p.raw) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), p.raw...)
}

// MarshalJSON emits the wrapped JSON, or null when undefined.
func (p EventPayload) MarshalJSON() ([]byte, error) {
	if !p.defined || len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw(), nil
}

// UnmarshalJSON wraps the given JSON; a literal null stays undefined.
func (p *EventPayload) UnmarshalJSON(raw []byte) error {
	if string(raw) == "null" {
		*p = EventPayload{}
		return nil
	}
	*p = NewEventPayload(raw)
	return nil
}

// DecodePayload decodes an event payload into a value of type T. It returns
// the zero value and false if the payload is undefined, empty, or cannot be
// unmarshaled into T.
func DecodePayload[T any](p EventPayload) (T, bool) {
	var out T
	raw := p.Raw()
	if len(raw) == 0 {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}
