// Package service holds the invoicing use cases: numbering, recurring
// processing, PDF generation and CRUD over invoices, templates and clients.
package service

import "time"

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Clock returns the current time; tests substitute a fixed one
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
