// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when scripting model turns and observing the
// notifications a session emits. These helpers are not intended for
// production usage.
package testutil
