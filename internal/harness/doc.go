// Package harness runs offline scenarios against a fully wired edge.
//
// Each scenario gets a fresh in-memory store, a fake origin serving the
// install manifest, and a switchable network. Steps drive the edge the
// way a browser and the backend would; assertions check the durable
// queue, the origin and the lifecycle state afterwards.
//
// # Scenario Format
//
//	name: offline_save_replays_once
//	description: "A save made offline reaches the origin once"
//	pages:
//	  /api/v1/wards: '{"wards":["Camden Town"]}'
//	steps:
//	  - do: start
//	  - do: offline
//	  - do: submit
//	    kind: saved-case-create
//	    body: '{"case_reference":"2024/0001/P","tags":[]}'
//	    expect: { queued: true }
//	  - do: online
//	  - do: sync
//	    tag: sync-saved-case-create
//	    expect: { replayed: 1 }
//	assertions:
//	  - type: pending
//	    count: 0
//	  - type: delivered
//	    path: /api/v1/saved-cases
//	    count: 1
//
// # Steps
//
//   - start, install, activate: lifecycle transitions
//   - offline, online: switch connectivity and run a health probe
//   - request: send method/path (mode sets Sec-Fetch-Mode) through the edge
//   - submit: post a pending action kind through the outbox
//   - save: save a case, mirroring it locally before submitting
//   - reject, accept: make the origin refuse or accept mutations to path
//   - page: replace the origin body for path
//   - sync: run a reconcile pass for tag, or for every kind
//   - push, click: deliver a push payload, click the last notification
//
// # Deterministic Testing
//
// Store timestamps come from testutil.DeterministicClock and the trace
// leaves out anything random (ports, idempotency keys, notification
// tags), so traces can be compared against golden files with RunWithGolden.
package harness
