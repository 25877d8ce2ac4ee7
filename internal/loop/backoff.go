package loop

import "github.com/mrblmoore/hannibal-ai/internal/metrics"

// backoff suspends remote requests after repeated failures. Time is the
// loop's simulation clock, so a paused game does not burn the cooldown.
type backoff struct {
	maxFailures int
	cooldown    float64

	failures  int
	open      bool
	openUntil float64
}

func newBackoff(maxFailures int, cooldown float64) backoff {
	return backoff{maxFailures: maxFailures, cooldown: cooldown}
}

// allow reports whether a remote request may be sent at now. Once the
// cooldown has passed one trial request is let through; a failure reopens.
func (b *backoff) allow(now float64) bool {
	if !b.open {
		return true
	}
	if now < b.openUntil {
		return false
	}
	b.open = false
	b.failures = b.maxFailures - 1
	metrics.BackoffActive.Set(0)
	return true
}

// failure records a failed request and reports whether it opened the backoff.
func (b *backoff) failure(now float64) bool {
	if b.maxFailures <= 0 {
		return false
	}
	b.failures++
	if b.failures < b.maxFailures {
		return false
	}
	b.open = true
	b.openUntil = now + b.cooldown
	metrics.BackoffActive.Set(1)
	return true
}

func (b *backoff) success() {
	b.failures = 0
	if b.open {
		b.open = false
		metrics.BackoffActive.Set(0)
	}
}
