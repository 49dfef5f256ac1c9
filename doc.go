// Package authgate provides the server-side core of a single-sign-on
// authentication portal: LDAP-backed first-factor validation, TOTP,
// WebAuthn and Duo Push second factors, brute-force regulation, and
// per-domain access control, with all state held in Redis-backed stores.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder],
// [Config], the consumed-capability interfaces ([LDAPProvider],
// [Notifier], [DuoProvider], [DeviceAuthenticator]), and value types.
// Session encoding and persistence live in the session sub-package;
// random identifiers and in-process metrics live under internal/.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or record encodings in its
//     public API.
//   - Speak the LDAP wire protocol, render UI, or deliver email; those
//     are consumed capabilities supplied by the caller.
//   - Keep per-user challenge state in process memory. Ephemeral
//     ceremony state belongs in the authentication session so that the
//     portal can restart and scale horizontally.
package authgate
