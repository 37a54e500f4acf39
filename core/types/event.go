package types

// Event represents a typed event emitted during state transitions. Attribute
// values are pre-rendered strings so sinks never need the domain types.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// NewEvent returns an event with an initialised attribute map.
func NewEvent(eventType string) *Event {
	return &Event{Type: eventType, Attributes: make(map[string]string)}
}

// With sets an attribute and returns the event for chaining. Empty values are
// skipped.
func (e *Event) With(key, value string) *Event {
	if e == nil || key == "" || value == "" {
		return e
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}
