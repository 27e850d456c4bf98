// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sync"
	"time"
)

// livenessState is the single mutex-guarded snapshot the health server
// reads: when the carrier last produced a successful exchange, distinct
// from when the daemon started. Readiness checks read it; the poll loop
// and the driver's unsolicited-frame observers write it.
type livenessState struct {
	mu          sync.Mutex
	startedAt   time.Time
	lastSuccess time.Time
}

func newLivenessState() *livenessState {
	return &livenessState{startedAt: time.Now()}
}

func (s *livenessState) markSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSuccess = time.Now()
}

// readinessCheck reports an error once the startup grace period has
// elapsed and either no exchange has ever succeeded or the last one is
// older than grace.
func (s *livenessState) readinessCheck(grace time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.startedAt) < grace {
		return nil
	}
	if s.lastSuccess.IsZero() {
		return fmt.Errorf("no successful exchange since startup %s ago", time.Since(s.startedAt).Round(time.Second))
	}
	if age := time.Since(s.lastSuccess); age > grace {
		return fmt.Errorf("last successful exchange %s ago exceeds grace period %s", age.Round(time.Second), grace)
	}
	return nil
}
