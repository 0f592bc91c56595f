// Package notify provides Notifier implementations: an SMTP mailer for
// production and a structured-log notifier for development. Delivery is
// best-effort by contract; callers log failures and move on.
package notify
