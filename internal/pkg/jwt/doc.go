// Package jwt verifies and issues HS512 access tokens.
//
// The service trusts tokens minted by the identity provider: the registered
// "sub" claim is the canonical subject that one-time codes are bound to, and
// the "roles" claim feeds authorization. Generate exists for tooling and tests.
package jwt
