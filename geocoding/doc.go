/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package geocoding implements the gateway in front of a rate-limited geocoding provider.
//
// A lookup passes the query normalizer, the per-identity quota, the result cache and,
// on a miss, the serialized dispatcher which calls the provider through the retrying upstream client.
// Every exit path is shaped into either the provider's payload passed through verbatim
// or a restapi.Error.
package geocoding
