// Package flows holds the credential-sensitive request flows (login and
// refresh rotation) behind dependency structs, so the logic can be
// exercised without the root engine and without import cycles. Each flow
// returns a result value carrying a failure kind; the root package maps
// kinds onto its public sentinel errors.
package flows
