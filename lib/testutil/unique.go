// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefixN" where N is a
// monotonically increasing integer. The result ends in digits, so it
// is also a valid agent name.
//
//	name := testutil.UniqueID("fb")   // "fb1", "fb2", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, uniqueCounter.Add(1))
}
