// Package metrics emits the identity bridge's StatsD metrics.
package metrics

import (
	"time"

	obserrors "github.com/target/opsconsole/internal/observability/errors"
	"github.com/target/opsconsole/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess   = "success"
	ResultRejected  = "rejected"
	ResultTransient = "transient"
	ResultError     = "error"
	ResultNoSession = "no_session"
	ResultForced    = "forced"
)

// ValidationMetric describes one token validation.
type ValidationMetric struct {
	Result   string
	Err      error
	Duration time.Duration
}

// EmitValidation emits auth.validate counters and timings.
func EmitValidation(sink statsd.Sink, in ValidationMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": in.Result}
	if in.Err != nil {
		tags["reason"] = obserrors.Classify(in.Err)
	}
	sink.Count("auth.validate", 1, tags)
	if in.Duration > 0 {
		sink.Timing("auth.validate.duration", in.Duration, CloneTags(tags))
	}
}

// SessionMetric describes a session controller transition.
type SessionMetric struct {
	// Event is restore, login, refresh or logout.
	Event  string
	Result string
	Err    error
}

// EmitSession emits session.<event> counters.
func EmitSession(sink statsd.Sink, in SessionMetric) {
	if sink == nil || in.Event == "" {
		return
	}
	tags := map[string]string{"result": in.Result}
	if in.Err != nil {
		tags["reason"] = obserrors.Classify(in.Err)
	}
	sink.Count("session."+in.Event, 1, tags)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
