// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package background_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/cr0ssing/raam.go/background"
)

type bg1 struct {
	count int64
}

const (
	initialCount1 = 246
	initialCount2 = 777
)

func TestBackground(t *testing.T) {

	proc1 := &bg1{
		count: initialCount1,
	}
	proc2 := &bg1{
		count: initialCount2,
	}

	// list of background processes to start
	processes := background.Processes{
		proc1,
		proc2,
	}

	p := background.Start(processes, t)
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	if atomic.LoadInt64(&proc1.count) <= initialCount1 {
		t.Errorf("proc1 did not run: count: %d", proc1.count)
	}
	if atomic.LoadInt64(&proc2.count) <= initialCount2 {
		t.Errorf("proc2 did not run: count: %d", proc2.count)
	}

	// stopping a nil handle must not panic
	var n *background.T
	n.Stop()
}

func (state *bg1) Run(args interface{}, shutdown <-chan struct{}) {

	if _, ok := args.(*testing.T); !ok {
		panic("wrong args type")
	}

loop:
	for {
		select {
		case <-shutdown:
			break loop
		default:
		}

		atomic.AddInt64(&state.count, 1)
		time.Sleep(time.Millisecond)
	}
}
