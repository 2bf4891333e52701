// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package reader - the reading side of a channel
//
// a reader holds a sparse cache of authenticated messages keyed by
// index; an entry never changes once set, mirroring the immutability
// of a ledger address
package reader

import (
	"encoding/binary"
	"sync"

	"github.com/bitmark-inc/logger"
	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/merkle"
	"github.com/cr0ssing/raam.go/ots"
	"github.com/cr0ssing/raam.go/store"
	"github.com/cr0ssing/raam.go/subscription"
	"github.com/cr0ssing/raam.go/tangle"
)

// Options - reader construction parameters
type Options struct {
	Ledger          tangle.Ledger         // required for fetching
	Height          int                   // optional, learned from the first message
	ChannelPassword trinary.Trytes        // optional
	Manager         *subscription.Manager // nil selects the process-wide manager
}

// Reader - one channel consumer
type Reader struct {
	sync.Mutex
	log             *logger.L
	ledger          tangle.Ledger
	manager         *subscription.Manager
	root            trinary.Trytes
	rootTrits       trinary.Trits
	height          int
	security        int
	channelPassword trinary.Trytes
	messages        map[uint64]trinary.Trytes
	branches        map[uint64]trinary.Trytes
	branchSecurity  map[uint64]int
	cursor          uint64
}

// New - create a reader for a channel root
//
// the security level is the root's own width; the height is optional
// and is checked against message headers once known
func New(root trinary.Trytes, opts *Options) (*Reader, error) {
	if nil == opts {
		opts = &Options{}
	}

	rootTrits, err := trinary.TrytesToTrits(root)
	if nil != err {
		return nil, fault.ErrInvalidMessage
	}
	security := len(root) / consts.HashTrytesSize
	if !ots.ValidSecurity(security) || 0 != len(root)%consts.HashTrytesSize {
		return nil, fault.ErrInvalidSecurityLevel
	}
	if 0 != opts.Height && !merkle.ValidHeight(opts.Height) {
		return nil, fault.ErrInvalidHeight
	}

	return &Reader{
		log:             logger.New("reader"),
		ledger:          opts.Ledger,
		manager:         opts.Manager,
		root:            root,
		rootTrits:       rootTrits,
		height:          opts.Height,
		security:        security,
		channelPassword: opts.ChannelPassword,
		messages:        make(map[uint64]trinary.Trytes),
		branches:        make(map[uint64]trinary.Trytes),
		branchSecurity:  make(map[uint64]int),
	}, nil
}

// Root - the channel root
func (r *Reader) Root() trinary.Trytes { return r.root }

// Security - the channel security level
func (r *Reader) Security() int { return r.security }

// Height - the channel height; zero while still unknown
func (r *Reader) Height() int {
	r.Lock()
	defer r.Unlock()
	return r.height
}

// Cursor - the first index not known to hold a message
func (r *Reader) Cursor() uint64 {
	r.Lock()
	defer r.Unlock()
	return r.cursor
}

// Message - a cached message
func (r *Reader) Message(index uint64) (trinary.Trytes, bool) {
	r.Lock()
	defer r.Unlock()
	m, ok := r.messages[index]
	return m, ok
}

// Branch - a cached branch root
func (r *Reader) Branch(index uint64) (trinary.Trytes, int, bool) {
	r.Lock()
	defer r.Unlock()
	b, ok := r.branches[index]
	return b, r.branchSecurity[index], ok
}

// the subscription manager in use
func (r *Reader) subscriptionManager() *subscription.Manager {
	if nil != r.manager {
		return r.manager
	}
	return subscription.Default()
}

// insert an authenticated message; an existing entry is never replaced
func (r *Reader) cacheInsert(result *Result) {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.messages[result.Index]; ok {
		return
	}
	r.messages[result.Index] = result.Message
	if "" != result.NextRoot {
		r.branches[result.Index] = result.NextRoot
		r.branchSecurity[result.Index] = result.NextRootSecurity
	}
	if 0 == r.height {
		r.height = result.height
	}

	// the cursor is the first hole
	for {
		if _, ok := r.messages[r.cursor]; !ok {
			break
		}
		r.cursor += 1
	}
}

// WarmCache - preload the cache from the local store
//
// entries in the store were authenticated before they were written, so
// they load without ledger access; returns the number of entries added
func (r *Reader) WarmCache() int {
	if !store.IsInitialised() {
		return 0
	}

	cursorValue := store.Pool.Cursors.Get(store.RootKey(r.root))
	if 8 != len(cursorValue) {
		return 0
	}
	stored := binary.BigEndian.Uint64(cursorValue)

	count := 0
	for i := uint64(0); i < stored; i += 1 {
		key := store.IndexKey(r.root, i)
		message := store.Pool.Messages.Get(key)
		if nil == message {
			continue
		}

		result := &Result{
			Index:   i,
			Found:   true,
			Message: trinary.Trytes(message),
		}
		if branch := store.Pool.Branches.Get(key); len(branch) > 0 &&
			0 == len(branch)%consts.HashTrytesSize {
			result.NextRoot = trinary.Trytes(branch)
			result.NextRootSecurity = len(branch) / consts.HashTrytesSize
		}

		if _, ok := r.Message(i); !ok {
			r.cacheInsert(result)
			count += 1
		}
	}

	r.log.Infof("warmed cache: %d entries", count)
	return count
}

// cached result lookup
func (r *Reader) cached(index uint64) (*Result, bool) {
	r.Lock()
	defer r.Unlock()

	m, ok := r.messages[index]
	if !ok {
		return nil, false
	}
	return &Result{
		Index:            index,
		Found:            true,
		Message:          m,
		NextRoot:         r.branches[index],
		NextRootSecurity: r.branchSecurity[index],
	}, true
}
