// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stream

import (
	"sync"

	"github.com/iotaledger/iota.go/transaction"

	"github.com/cr0ssing/raam.go/fault"
)

// Loopback - an in-process feed for tests and offline use
//
// records are fed by calling Deliver, typically from a memory ledger's
// submit observer
type Loopback struct {
	sync.Mutex
	records chan *transaction.Transaction
	open    bool
}

// NewLoopback - create a closed loopback feed
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Open - start accepting deliveries; the url is ignored
func (l *Loopback) Open(url string) error {
	l.Lock()
	defer l.Unlock()

	if l.open {
		return fault.ErrAlreadyInitialised
	}
	l.records = make(chan *transaction.Transaction, recordQueueSize)
	l.open = true
	return nil
}

// Records - arriving records
func (l *Loopback) Records() <-chan *transaction.Transaction {
	l.Lock()
	defer l.Unlock()
	return l.records
}

// Close - stop accepting deliveries
func (l *Loopback) Close() error {
	l.Lock()
	defer l.Unlock()

	if !l.open {
		return fault.ErrNotConnected
	}
	// the closed channel stays readable so consumers see the close
	l.open = false
	close(l.records)
	return nil
}

// Deliver - push records into the feed
//
// records sent while the feed is closed are dropped silently, the way
// a disconnected subscriber misses live records
func (l *Loopback) Deliver(records transaction.Transactions) {
	l.Lock()
	defer l.Unlock()

	if !l.open {
		return
	}
	for i := range records {
		record := records[i]
		select {
		case l.records <- &record:
		default:
		}
	}
}
