// Package transition sequences and cancels overlapping asynchronous hand-offs
// between resources on a channel (a room's audio track, a tooltip owner, a
// live cursor, ...).
//
// Every request bumps the channel's generation and captures it as a token.
// Only work whose token still equals the channel's generation may mutate
// shared state; everything else detects staleness and stops at its next
// check. Cancellation is cooperative: a single blocking step (Start, a sleep
// between ramp frames) is never interrupted, only the steps after it are
// skipped.
//
// # Hand-off
//
// RequestActivate winds the active resource down (level ramped to zero over
// Config.FadeOut), deactivates it if the request is still current, then
// starts the target (Start, level ramped up over Config.FadeIn) re-checking
// the token after every await. A wind-down already in flight is joined, not
// repeated, so a resource is faded out exactly once however many requests
// pile up behind it. Whoever is current when the fade ends performs the
// deactivation.
//
// A superseded start only cleans up (Stop) the resource it was starting and
// never marks it active, so at most one resource per channel is ever active.
package transition
