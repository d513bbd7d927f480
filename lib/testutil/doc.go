// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides small helpers shared by Palaver's tests:
// channel send/receive with timeout safety valves so a broken test
// fails with a message instead of hanging the suite.
package testutil
