// Package workflow drives configuration of the appliance's uplinks.
//
// One Engine exists per interface kind (SIM, Ethernet, Wi-Fi). It holds the
// slot list from the last poll and a small state machine for the dialog the
// user is working in:
//
//	Idle -> AwaitingAction -> Working -> Idle | Error
//	Error -> AwaitingAction (retry) | Idle (dismiss)
//
// At most one configuration write is outstanding per engine. Polls are
// suppressed while a write is in flight and a poll that started before a
// write is discarded, so the write's response always wins. Payloads are built
// from the per-field policies in form.go and validated locally before they are
// sent.
package workflow
