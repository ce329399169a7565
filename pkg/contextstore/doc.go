// Package contextstore keeps named, timestamped context records that the
// engine and tools can store and look up later.
//
// Record IDs have the form ctx_<seq>_<unix-seconds>. The sequence counter is
// persisted with the records, so an ID is never handed out twice even across
// restarts.
package contextstore
