// Package overlay implements the pending payload buffer that shadows a
// fragment's backing-store bytes once seqs/<id>.seq receives a write.
//
// A Pending starts life resident in memory, accounted against a shared
// Ceiling across every pending fragment in the mount. Once a write
// would push the aggregate past the ceiling, the buffer migrates in
// full to a per-fragment spill file and stays disk-backed for the rest
// of its life — there is no migration back to memory.
package overlay
