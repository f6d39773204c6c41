// Package policy defines composable functions that control the connections a
// node accepts, and the durations it waits between attempts.
//
// Allow functions filter inbound connections before the handshake:
//
//	// At most 256 concurrent inbound connections, and at most 10 attempts
//	// per second (bursting to 20) from any one IP address.
//	allow := policy.All(policy.Max(256), policy.RateLimit(10, 20, 1024))
//
// Timeout functions map an attempt number to a duration, and are used for the
// backoff between retries of a send:
//
//	// Wait 100ms, then 200ms, then 400ms, and never more than 10s.
//	backoff := policy.MaxTimeout(10*time.Second, policy.ExponentialBackoff(2, policy.ConstantTimeout(100*time.Millisecond)))
package policy
