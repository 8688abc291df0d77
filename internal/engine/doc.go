// Package engine executes discovery tasks and keeps the stored candidate
// device state of device templates consistent.
//
// Four task kinds exist: Update fetches fresh candidate devices from the
// repositories (optionally creating subscriptions), Merge replaces one
// repository's collection wholesale, Revise applies an incremental revision
// from a repository notification, and Delete removes a template's stored
// state once nothing uses it anymore. Tasks either make progress or are a
// silent no-op; they never fail because data is merely absent.
//
// The engine runs tasks on a bounded worker pool but strictly serialises
// all tasks that touch the same device template, which removes the
// check-then-act races a free-for-all scheduler would allow. It also acts
// as the gateway's notification subscriber: an incoming revision becomes a
// queued Revise task, so dispatch never blocks the transport.
package engine
