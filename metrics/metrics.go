// Package metrics defines the recording surface for verification and
// storage events. The default recorder discards everything.
package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
