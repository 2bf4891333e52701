// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tangle - access to the content-addressed ledger
//
// records are plain ledger transactions: 2187-tryte message fragments
// at value zero, grouped into bundles by the node
package tangle

import (
	"sort"

	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"
)

// proof of work defaults, opaque to this module
const (
	DefaultDepth = 3
	DefaultMWM   = 14
)

// Ledger - the client interface to the ledger
//
// implementations must return records exactly as stored; ordering of
// bundle ids follows discovery order
type Ledger interface {

	// FindByAddress - bundle ids of all bundles at an address
	FindByAddress(address trinary.Hash) ([]trinary.Hash, error)

	// GetRecords - all records of the given bundles
	GetRecords(bundles []trinary.Hash) (transaction.Transactions, error)

	// Submit - attach records as one bundle
	//
	// zero depth and mwm select the defaults
	Submit(records transaction.Transactions, depth uint64, mwm uint64) (transaction.Transactions, error)
}

// GroupBundles - split mixed records into per-bundle groups
//
// records inside a group are ordered by currentIndex; groups are
// ordered by their earliest attachment timestamp so the oldest bundle
// at an address is tried first
func GroupBundles(records transaction.Transactions) []transaction.Transactions {

	byBundle := make(map[trinary.Hash]transaction.Transactions)
	order := make([]trinary.Hash, 0)

	for i := range records {
		id := records[i].Bundle
		if _, ok := byBundle[id]; !ok {
			order = append(order, id)
		}
		byBundle[id] = append(byBundle[id], records[i])
	}

	groups := make([]transaction.Transactions, 0, len(order))
	for _, id := range order {
		group := byBundle[id]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].CurrentIndex < group[j].CurrentIndex
		})
		groups = append(groups, group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return earliest(groups[i]) < earliest(groups[j])
	})

	return groups
}

func earliest(group transaction.Transactions) uint64 {
	t := group[0].Timestamp
	for _, r := range group[1:] {
		if r.Timestamp < t {
			t = r.Timestamp
		}
	}
	return t
}
