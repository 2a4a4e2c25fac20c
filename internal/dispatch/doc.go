// Package dispatch runs the recurring-dispatch engine.
//
// A cron trigger (once per minute by default) evaluates every stored
// schedule against a single captured instant and fans due messages out
// through the Sink. Delivery is best-effort: a schedule that passes the
// guards is marked sent for the day exactly once, whether or not any
// individual delivery succeeded.
package dispatch
