package lightcurve

import "time"

const (
	EventReady  = "lightcurve.ready"
	EventFailed = "lightcurve.failed"
)

// Event is emitted after every fetch attempt that got past the cache check.
type Event struct {
	Type   string    `json:"type"`
	Target string    `json:"target"`
	File   string    `json:"file,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// Notifier receives resolver events. Implementations must not block.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }
