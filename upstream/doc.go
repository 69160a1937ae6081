/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package upstream talks to the external geocoding provider.
//
// Client performs a single bounded attempt and classifies its outcome as success,
// retryable failure or permanent failure. Retrier drives a bounded retry loop over
// those outcomes, honoring Retry-After hints and falling back to exponential backoff.
// The upstream payload is kept as opaque JSON.
package upstream
