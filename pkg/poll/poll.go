// Package poll implements the engine's only waiting primitive: a
// fixed-interval bounded poll with one final evaluation after the
// deadline. There is no background work anywhere in the engine; every
// simulated action blocks on one of these until verified or timed out.
package poll

import "time"

// Until polls fn at the given interval until it returns true or the
// timeout elapses. After the deadline one final evaluation runs, so a
// condition that became true during the last sleep is not missed.
func Until(timeout, interval time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(interval)
	}
	return fn()
}

// First polls fn until it yields a non-nil result or the timeout
// elapses, returning the result of the last evaluation.
func First[T any](timeout, interval time.Duration, fn func() (T, bool)) (T, bool) {
	var out T
	var ok bool
	Until(timeout, interval, func() bool {
		out, ok = fn()
		return ok
	})
	return out, ok
}
