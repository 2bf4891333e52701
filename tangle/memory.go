// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tangle

import (
	"sync"

	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/curl"
	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"
)

// Memory - a deterministic in-process ledger
//
// submission assigns bundle id, record indexes and a logical timestamp;
// results are stable across runs with the same submission order
type Memory struct {
	sync.Mutex
	byAddress map[trinary.Hash][]trinary.Hash
	bundles   map[trinary.Hash]transaction.Transactions
	clock     uint64
	observers []func(transaction.Transactions)
}

// NewMemory - create an empty ledger
func NewMemory() *Memory {
	return &Memory{
		byAddress: make(map[trinary.Hash][]trinary.Hash),
		bundles:   make(map[trinary.Hash]transaction.Transactions),
	}
}

// FindByAddress - bundle ids at an address in submission order
func (m *Memory) FindByAddress(address trinary.Hash) ([]trinary.Hash, error) {
	m.Lock()
	defer m.Unlock()

	ids := m.byAddress[address]
	result := make([]trinary.Hash, len(ids))
	copy(result, ids)
	return result, nil
}

// GetRecords - all records of the given bundles
func (m *Memory) GetRecords(bundles []trinary.Hash) (transaction.Transactions, error) {
	m.Lock()
	defer m.Unlock()

	records := make(transaction.Transactions, 0)
	for _, id := range bundles {
		records = append(records, m.bundles[id]...)
	}
	return records, nil
}

// Submit - store records as one bundle
func (m *Memory) Submit(records transaction.Transactions, depth uint64, mwm uint64) (transaction.Transactions, error) {
	m.Lock()

	m.clock += 1

	stored := make(transaction.Transactions, len(records))
	copy(stored, records)

	id, err := bundleID(stored)
	if nil != err {
		m.Unlock()
		return nil, err
	}

	last := uint64(len(stored) - 1)
	for i := range stored {
		stored[i].Bundle = id
		stored[i].CurrentIndex = uint64(i)
		stored[i].LastIndex = last
		stored[i].Timestamp = m.clock
		stored[i].Hash = id
	}

	// a resubmission of identical content is the same bundle
	if _, ok := m.bundles[id]; !ok {
		addresses := make(map[trinary.Hash]struct{})
		for i := range stored {
			addresses[stored[i].Address] = struct{}{}
		}
		for address := range addresses {
			m.byAddress[address] = append(m.byAddress[address], id)
		}
		m.bundles[id] = stored
	}

	observers := make([]func(transaction.Transactions), len(m.observers))
	copy(observers, m.observers)
	m.Unlock()

	// notify outside the lock
	for _, f := range observers {
		f(stored)
	}

	result := make(transaction.Transactions, len(stored))
	copy(result, stored)
	return result, nil
}

// OnSubmit - register an observer for accepted bundles
//
// used to feed a loopback push stream in tests
func (m *Memory) OnSubmit(f func(transaction.Transactions)) {
	m.Lock()
	defer m.Unlock()
	m.observers = append(m.observers, f)
}

// derive a deterministic bundle id from address and fragments
func bundleID(records transaction.Transactions) (trinary.Hash, error) {
	c := curl.NewCurl()
	for i := range records {
		addressTrits, err := trinary.TrytesToTrits(records[i].Address)
		if nil != err {
			return "", err
		}
		err = c.Absorb(addressTrits)
		if nil != err {
			return "", err
		}
		fragment, err := trinary.TrytesToTrits(records[i].SignatureMessageFragment)
		if nil != err {
			return "", err
		}
		err = c.Absorb(fragment)
		if nil != err {
			return "", err
		}
	}
	trits, err := c.Squeeze(consts.HashTrinarySize)
	if nil != err {
		return "", err
	}
	return trinary.MustTritsToTrytes(trits), nil
}
