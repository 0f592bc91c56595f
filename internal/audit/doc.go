// Package audit provides the asynchronous audit trail of the auth core.
// Events are forwarded to a caller-supplied sink off the request path;
// security events (refresh-token reuse) carry a distinct marker so they
// can be alerted on separately from ordinary failures.
//
// # What this package must NOT do
//
//   - Block an auth operation on a slow sink; a full queue drops and counts.
//   - Import authcore or any sibling package.
package audit
