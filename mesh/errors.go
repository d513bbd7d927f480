// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"errors"
	"fmt"
)

// ErrClosed is the underlying cause reported by operations on a closed
// subscription. Test with errors.Is.
var ErrClosed = errors.New("subscription closed")

// TransportError reports a failure from the mesh substrate. During
// initial subscribe (bind, bootstrap dialing) it is fatal to startup;
// after the event loop is running, send-side occurrences are logged
// and the loop continues.
type TransportError struct {
	// Op is the operation that failed: "listen", "dial", "broadcast",
	// "next".
	Op string
	// Err is the underlying cause.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mesh: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
