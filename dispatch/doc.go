/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package dispatch provides a single-lane task dispatcher.
// Tasks are executed one at a time in submission order,
// and the start of every task is spaced from the start of the previous one by at least the configured interval.
package dispatch
