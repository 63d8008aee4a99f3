// Package notify fans status messages out to more than one sink.
package notify

// Reporter receives status messages. Both the web broadcaster and the MQTT
// publisher implement it.
type Reporter interface {
	Broadcast(level, msg string)
}

// Multi sends every message to each of its reporters in order.
// Nil entries are skipped.
type Multi []Reporter

func (m Multi) Broadcast(level, msg string) {
	for _, r := range m {
		if r != nil {
			r.Broadcast(level, msg)
		}
	}
}

// Func adapts a plain function to Reporter.
type Func func(level, msg string)

func (f Func) Broadcast(level, msg string) { f(level, msg) }
