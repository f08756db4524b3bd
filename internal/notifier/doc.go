// Package notifier turns a filtered feed entry into an alert and delivers it.
//
// # Formatting
//
// A Formatter decides whether an entry is worth an alert at all. An entry with
// an extracted code becomes a high severity alert carrying the code. Without a
// code, only titles containing a strong signal ("半額", "無料", "free", ...) are
// announced, as low severity alerts that point the reader at the link.
// Everything else is suppressed.
//
// # Dispatch
//
// A Dispatcher delivers messages through a transport.Sink one at a time. It
// paces deliveries with a token bucket (one token per MinInterval, burst 1),
// bounds each attempt with a timeout and retries transient failures with
// jittered exponential backoff, honouring a server supplied Retry-After.
//
// # History
//
// For operator visibility, the dispatcher keeps a small in-memory history of
// recent deliveries and failures.
package notifier
