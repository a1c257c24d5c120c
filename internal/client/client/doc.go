// Package client is the authenticated HTTP façade application code calls.
//
// # Overview
//
// Client.Do runs one request through the pipeline:
//  1. If the path requires authentication (see endpoints.Classifier) and
//     the token store holds a token, attach "Authorization: Bearer <token>".
//  2. Send it through the Transport.
//  3. Any response other than 401 is returned unchanged; business errors
//     are not interpreted.
//  4. On a first 401 the request is marked retried, a token is acquired
//     from the refresh coordinator, and the request is replayed exactly
//     once with that token. Its outcome is returned as-is, except that a
//     second 401 becomes an *AuthError matching common.ErrRetryExhausted.
//  5. If the refresh fails, its error is returned. The coordinator has
//     already cleared the token store and told the session sink, once per
//     failed cycle.
//
// # Error Handling
//
// A Path may also be an absolute URL. When its scheme and host differ from
// the base URL the request bypasses the pipeline: no token is attached and
// a 401 is returned as it came.
//
// Transport failures (no response at all) come back as *TransportError and
// never trigger a refresh. The JSON helpers additionally turn non-2xx
// responses into *APIError. Match with errors.Is against the sentinels in
// package common: ErrTransport, ErrRetryExhausted, ErrRefreshFailed.
//
// # Concurrency
//
// A Client is safe for concurrent use. All refresh state lives in the
// coordinator it was built with; share one coordinator per session.
package client
