// Package repair is the repair-session orchestrator.
//
// A Session holds one uploaded dataset at a time. The operator narrows it to
// an active row set with a filter pattern on the target column, sends those
// rows to the repair service, reviews the proposals that come back in a
// scratch column, marks the ones to keep and commits them. Every committed
// change yields an AuditRecord that is handed to an AuditSink under the
// dataset's log name.
//
// The pure steps (FilterRows, BuildRequest, MergeResults, CommitRepairs,
// EvidenceAt) are usable on their own; Session wires them together and owns
// the state, the single-slot in-flight Gate, and stale-response handling.
package repair
