package enums

// OutboxDLQErrorReason records why an outbox row stopped being retried.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts rows failed transiently until the attempt
	// budget ran out.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable rows could not be decoded or validated.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonUnroutable rows resolved to a topic with no publisher.
	OutboxDLQReasonUnroutable OutboxDLQErrorReason = "unroutable"
)

var dlqReasons = []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnroutable}

func (r OutboxDLQErrorReason) IsValid() bool { return member(dlqReasons, r) }

// Replayable reports whether the row can be re-queued as-is once the cause
// is fixed outside the payload.
func (r OutboxDLQErrorReason) Replayable() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonUnroutable
}

// ReplayableDLQReasons lists the reasons for which Replayable is true.
func ReplayableDLQReasons() []OutboxDLQErrorReason {
	var out []OutboxDLQErrorReason
	for _, r := range dlqReasons {
		if r.Replayable() {
			out = append(out, r)
		}
	}
	return out
}
