// Package checkpoint persists resumable dataset progress and exported results.
//
// Progress for dataset N is the JSON document stored as progress-N.json (file backend)
// or under <prefix>:progress:N (Redis backend). The exported result lives beside it as
// data-set-N.json or <prefix>:result:N.
//
// File writes go through a temporary file and a rename so a crash mid-write never leaves
// a truncated progress file behind. The Checkpointer layers periodic, non-blocking
// interim writes on top of any Store and guarantees one final awaited write.
package checkpoint
