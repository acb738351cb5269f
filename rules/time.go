//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// TimerChannelLen flags len/cap checks on timer and ticker channels.
// The render loop and every poll loop in this repo lean on these
// channels; since Go 1.23 they are unbuffered, so len and cap are
// always 0 and the check is a latent bug.
func TimerChannelLen(m dsl.Matcher) {
	m.Match(`len($t.C)`, `cap($t.C)`).
		Where(m["t"].Type.Is("*time.Timer")).
		Report("timer channels are unbuffered since Go 1.23; len/cap is always 0, use a non-blocking select")

	m.Match(`len($t.C)`, `cap($t.C)`).
		Where(m["t"].Type.Is("*time.Ticker")).
		Report("ticker channels are unbuffered since Go 1.23; len/cap is always 0, use a non-blocking select")
}

// DeferredTimeSince flags time.Since passed as a defer argument, where
// it is evaluated at defer time and always reports ~0.
func DeferredTimeSince(m dsl.Matcher) {
	m.Match(
		`defer $fn(time.Since($start))`,
		`defer $fn(time.Since($start), $*_)`,
		`defer $fn($*_, time.Since($start))`,
	).
		Report("time.Since($start) is evaluated at defer time, not function exit; wrap the call in func() { ... }()")
}

// DeferredTimeNow is the same trap for time.Now.
func DeferredTimeNow(m dsl.Matcher) {
	m.Match(
		`defer $fn(time.Now())`,
		`defer $fn($*_, time.Now())`,
	).
		Report("time.Now() is evaluated at defer time, not function exit; wrap the call in func() { ... }()")
}
