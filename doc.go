// Package hglue defines the contract between the hub's config-entry machinery and the integrations that plug into it.
//
// An integration implements Lifecycle. Its SetupEntry returns a SetupResult, which is one of three things: Ready with
// a success flag, RetryLater when data it depends on has not arrived yet, or Removed when the entry does not belong on
// this system and the integration asked the Host to remove it. Hosts must never retry a Removed entry and must never
// treat RetryLater as a permanent failure.
package hglue
