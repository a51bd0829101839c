// Package rcu implements a lightweight, user-space read-copy-update
// primitive: per-thread reader registration plus a grace-period barrier
// that publishers use to wait out readers before reclaiming storage.
//
// Readers call [Handle.Begin] and [Handle.End] around every access to
// shared, concurrently-resized state. Both are wait-free. Publishers
// call [Domain.Synchronize] after swapping out old storage; it blocks
// until every reader that was active when it started has left its
// region, then returns, at which point the old storage may be freed.
//
// There is no try-lock and no timeout: a reader that never calls End
// will wedge a pending Synchronize forever, matching the semantics of
// the system this package models.
package rcu
