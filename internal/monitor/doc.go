// Package monitor runs the check cycle: fetch the current ranking,
// compare it against the last announced one, fan the update out to
// subscribers, then persist the new snapshot.
//
// One cycle per schedule tick. Cycles never overlap; a tick that
// arrives while a cycle is still running is skipped.
package monitor
