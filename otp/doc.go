// Package otp wraps github.com/pquerna/otp for RFC 6238 time-based one-time
// codes: enrolment with a provisioning URI, and skew-tolerant verification.
//
// Replay protection lives with the caller; [TOTP.Window] reports how long an
// accepted code stays verifiable so the caller can keep a replay record for
// that long.
package otp
