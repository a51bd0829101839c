package rcu

import "errors"

// ErrUnknownHandle is returned by Domain.Unregister for a handle that was
// never registered with this domain, or was already unregistered.
var ErrUnknownHandle = errors.New("rcu: unknown handle")
