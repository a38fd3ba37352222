// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package hw

import (
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// Budget bounds a busy wait: at most Tries checks with Delay between them.
// When MaxDelay exceeds Delay the delay doubles up to MaxDelay.  Zero Delay
// spins.
type Budget struct {
	Tries    int
	Delay    time.Duration
	MaxDelay time.Duration
}

func (b Budget) backoff() *backoff.Backoff {
	if b.Delay <= 0 {
		return nil
	}
	bo := &backoff.Backoff{Min: b.Delay, Max: b.Delay, Factor: 1}
	if b.MaxDelay > b.Delay {
		bo.Max = b.MaxDelay
		bo.Factor = 2
	}
	return bo
}

// Poll calls done until it returns true or the budget is spent.
func (b Budget) Poll(done func() bool) bool {
	bo := b.backoff()
	for i := 0; i < b.Tries; i++ {
		if done() {
			return true
		}
		if bo != nil && i+1 < b.Tries {
			time.Sleep(bo.Duration())
		}
	}
	return false
}

func (b Budget) String() string {
	if b.MaxDelay > b.Delay {
		return fmt.Sprintf("%d tries, %v..%v", b.Tries, b.Delay, b.MaxDelay)
	}
	return fmt.Sprintf("%d tries, %v", b.Tries, b.Delay)
}
