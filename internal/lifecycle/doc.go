// Package lifecycle coordinates install, activation, and push notification
// delivery for the offline edge.
//
// The coordinator moves through Installing, Waiting, Active, and Redundant
// only in response to external calls. Install precaches the asset manifest
// into the current cache generation as one all-or-nothing write. Activate
// purges every other generation and claims the connected instances.
package lifecycle
