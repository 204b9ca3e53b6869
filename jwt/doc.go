// Package jwt issues and verifies the three token kinds used by authcache:
// short-lived access tokens, long-lived refresh tokens and single-purpose
// password-reset tokens. Each kind is signed with its own key so a token of
// one kind never verifies as another.
package jwt
