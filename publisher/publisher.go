// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package publisher - the writing side of a channel
//
// a publisher owns the channel tree and the cursor; every message is
// signed with the leaf key of its index and becomes immutable once the
// ledger accepts its bundle
package publisher

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/keyfile"
	"github.com/cr0ssing/raam.go/merkle"
	"github.com/cr0ssing/raam.go/store"
	"github.com/cr0ssing/raam.go/tangle"
	"github.com/cr0ssing/raam.go/ternary"
)

// Options - channel construction parameters
type Options struct {
	Ledger           tangle.Ledger  // required for publishing
	ChannelPassword  trinary.Trytes // optional
	Offset           uint64         // subseed offset of leaf 0
	Depth            uint64         // proof of work depth, zero for default
	MWM              uint64         // minimum weight magnitude, zero for default
	Tag              trinary.Trytes // record tag, empty for default
	Progress         merkle.ProgressFunc
	ProgressInterval time.Duration
	KeySink          merkle.Sink // streams key material during construction
	Mirror           bool        // record accepted messages in the store
}

// Publisher - one single-writer channel
type Publisher struct {
	sync.RWMutex
	log             *logger.L
	tree            *merkle.Tree
	ledger          tangle.Ledger
	channelPassword trinary.Trytes
	depth           uint64
	mwm             uint64
	tag             trinary.Trytes
	mirror          bool
	cursor          uint64
	messages        map[uint64]trinary.Trytes
	branches        map[uint64]trinary.Trytes
	branchSecurity  map[uint64]int
}

// New - build the channel tree for a seed and wrap it in a publisher
//
// construction cost is the full key schedule: 2^height one-time keys
func New(seed trinary.Trytes, height int, security int, opts *Options) (*Publisher, error) {
	if nil == opts {
		opts = &Options{}
	}

	tree, err := merkle.NewTree(seed, height, security, &merkle.Options{
		Offset:           opts.Offset,
		Progress:         opts.Progress,
		ProgressInterval: opts.ProgressInterval,
		Sink:             opts.KeySink,
	})
	if nil != err {
		return nil, err
	}
	return FromTree(tree, opts)
}

// FromTree - wrap an already built or rehydrated tree
func FromTree(tree *merkle.Tree, opts *Options) (*Publisher, error) {
	if nil == opts {
		opts = &Options{}
	}

	p := &Publisher{
		log:             logger.New("publisher"),
		tree:            tree,
		ledger:          opts.Ledger,
		channelPassword: opts.ChannelPassword,
		depth:           opts.Depth,
		mwm:             opts.MWM,
		tag:             opts.Tag,
		mirror:          opts.Mirror,
		messages:        make(map[uint64]trinary.Trytes),
		branches:        make(map[uint64]trinary.Trytes),
		branchSecurity:  make(map[uint64]int),
	}

	if p.mirror {
		p.restoreMirror()
	}

	p.log.Infof("channel root: %s height: %d security: %d", tree.RootTrytes(), tree.Height(), tree.Security())
	return p, nil
}

// FromKeyFile - rehydrate the tree from persisted key material
func FromKeyFile(path string, opts *Options) (*Publisher, error) {
	tree, err := keyfile.Load(path)
	if nil != err {
		return nil, err
	}
	return FromTree(tree, opts)
}

// Root - the channel root
func (p *Publisher) Root() trinary.Trits {
	return p.tree.Root()
}

// RootTrytes - the channel root as trytes
func (p *Publisher) RootTrytes() trinary.Trytes {
	return p.tree.RootTrytes()
}

// Height - channel height
func (p *Publisher) Height() int { return p.tree.Height() }

// Security - channel security level
func (p *Publisher) Security() int { return p.tree.Security() }

// Capacity - total number of indexes
func (p *Publisher) Capacity() uint64 { return p.tree.Capacity() }

// Cursor - the next free index
func (p *Publisher) Cursor() uint64 {
	p.RLock()
	defer p.RUnlock()
	return p.cursor
}

// Message - a message from the local mirror
func (p *Publisher) Message(index uint64) (trinary.Trytes, bool) {
	p.RLock()
	defer p.RUnlock()
	m, ok := p.messages[index]
	return m, ok
}

// Branch - a published branch root
func (p *Publisher) Branch(index uint64) (trinary.Trytes, int, bool) {
	p.RLock()
	defer p.RUnlock()
	b, ok := p.branches[index]
	return b, p.branchSecurity[index], ok
}

// warm cursor and mirror from the store
func (p *Publisher) restoreMirror() {
	if !store.IsInitialised() {
		return
	}

	root := p.tree.RootTrytes()
	cursorValue := store.Pool.Cursors.Get(store.RootKey(root))
	if 8 == len(cursorValue) {
		p.cursor = binary.BigEndian.Uint64(cursorValue)
	}

	for i := uint64(0); i < p.cursor; i += 1 {
		key := store.IndexKey(root, i)
		if message := store.Pool.Messages.Get(key); nil != message {
			p.messages[i] = trinary.Trytes(message)
		}
		if branch := store.Pool.Branches.Get(key); nil != branch &&
			0 == len(branch)%consts.HashTrytesSize && len(branch) > 0 {
			p.branches[i] = trinary.Trytes(branch)
			p.branchSecurity[i] = len(branch) / consts.HashTrytesSize
		}
	}
	p.log.Infof("restored mirror: cursor: %d messages: %d", p.cursor, len(p.messages))
}

// validity check used before any composition
func (p *Publisher) checkMessage(message trinary.Trytes) error {
	if "" != message {
		if _, err := trinary.TrytesToTrits(message); nil != err {
			return fault.ErrInvalidMessage
		}
	}
	if len(message) >= ternary.TryteRadix*ternary.TryteRadix*ternary.TryteRadix {
		return fault.ErrInvalidLength
	}
	return nil
}
