// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability.
//
// Production code injects [Real]; tests inject [NewFake] and advance
// time deterministically. Anything that calls time.Now, time.After,
// time.NewTicker, or time.Sleep accepts a [Clock] instead of calling
// the time package directly; chat log timestamps and status-line
// notice expiry are the consumers here.
package clock
