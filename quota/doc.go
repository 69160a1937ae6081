/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package quota provides a fixed-window admission controller.
// Every check increments the counter of the (identity, action) window; once the counter exceeds the limit
// the caller is denied until the window resets. Counters live in a Store: process-local memory by default,
// or Redis when quota should be shared between several instances.
package quota
