// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the
// connect-retry loop and the reconnect gate.
//
// Production code holds a Clock and calls it instead of time.Now,
// time.After, or time.Sleep. [Real] forwards to the time package.
// [Fake] returns a [FakeClock] whose time only moves when a test calls
// [FakeClock.Advance], so retry backoff and circuit-breaker windows can
// be exercised without wall-clock waits:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go transport.Connect(ctx) // sleeps between attempts
//	c.WaitForTimers(1)        // the goroutine is now parked in Sleep
//	c.Advance(time.Second)    // release it
package clock
