// Package throttle limits repeated failures per key.
//
// The server keys the limiter on username and client address and consults it
// before checking a password:
//
//	if blocked, wait := limiter.Blocked(key); blocked {
//	    // answer 429 with Retry-After: wait
//	}
//	if !passwordOK {
//	    limiter.Fail(key)
//	} else {
//	    limiter.Reset(key)
//	}
//
// Windows are fixed: they start at the first failure and are not extended
// by later ones. Memory is bounded by MaxKeys; when full, the key that was
// first seen longest ago is evicted.
package throttle
