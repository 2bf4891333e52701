// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package publisher

import (
	"encoding/binary"

	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/ots"
	"github.com/cr0ssing/raam.go/record"
	"github.com/cr0ssing/raam.go/store"
)

// PublishOptions - per-message parameters
type PublishOptions struct {
	MessagePassword  trinary.Trytes // overrides the channel key basis
	Public           bool           // derive the key from the address
	NextRoot         trinary.Trytes // optional branch root
	NextRootSecurity int            // zero defaults to the branch root's width
	Tag              trinary.Trytes // overrides the channel tag
}

// PreparedMessage - records composed but not yet submitted
type PreparedMessage struct {
	Index            uint64
	Message          trinary.Trytes
	Address          trinary.Hash
	NextRoot         trinary.Trytes
	NextRootSecurity int
	Records          transaction.Transactions
}

// Result - a successfully attached message
type Result struct {
	Index   uint64
	Address trinary.Hash
	Bundle  trinary.Hash
	Records transaction.Transactions
}

// Publish - compose, sign and submit at the cursor
func (p *Publisher) Publish(message trinary.Trytes, opts *PublishOptions) (*Result, error) {
	return p.PublishAt(p.Cursor(), message, opts)
}

// PublishAt - compose, sign and submit at a specific index
func (p *Publisher) PublishAt(index uint64, message trinary.Trytes, opts *PublishOptions) (*Result, error) {
	prepared, err := p.CreateMessageTransfers(index, message, opts)
	if nil != err {
		return nil, err
	}
	return p.PublishMessageTransfers(prepared)
}

// CreateMessageTransfers - the composition half of publishing
//
// stops before submission so a caller can inspect or postpone the
// records; the index stays free until the second half succeeds
func (p *Publisher) CreateMessageTransfers(index uint64, message trinary.Trytes, opts *PublishOptions) (*PreparedMessage, error) {
	if nil == opts {
		opts = &PublishOptions{}
	}

	if err := p.checkMessage(message); nil != err {
		return nil, err
	}

	p.RLock()
	cursor := p.cursor
	_, used := p.messages[index]
	p.RUnlock()

	if index >= p.tree.Capacity() {
		return nil, fault.ErrInvalidIndex
	}
	if used || index < cursor {
		return nil, fault.ErrIndexUsed
	}

	nextRoot := opts.NextRoot
	nextRootSecurity := opts.NextRootSecurity
	if "" == nextRoot {
		nextRootSecurity = 0
	} else {
		if 0 == nextRootSecurity {
			nextRootSecurity = len(nextRoot) / consts.HashTrytesSize
		}
		if !ots.ValidSecurity(nextRootSecurity) ||
			nextRootSecurity*consts.HashTrytesSize != len(nextRoot) {
			return nil, fault.ErrInvalidSecurityLevel
		}
	}

	address, err := record.Address(p.tree.Root(), index, p.channelPassword)
	if nil != err {
		return nil, err
	}

	messagePassword := opts.MessagePassword
	if opts.Public {
		if "" != p.channelPassword {
			return nil, fault.ErrPublicNotAllowed
		}
		messagePassword = record.PublicPassword(address, index)
	}

	leaf, err := p.tree.Leaf(index)
	if nil != err {
		return nil, err
	}
	authPath, err := p.tree.AuthPath(index)
	if nil != err {
		return nil, err
	}

	digest, err := record.SigningDigest(message, index, leaf.Public, nextRoot, authPath, p.tree.Security())
	if nil != err {
		return nil, err
	}
	signature, err := ots.Sign(leaf.Private, digest)
	if nil != err {
		return nil, err
	}

	tag := opts.Tag
	if "" == tag {
		tag = p.tag
	}

	records, err := record.Assemble(&record.AssembleArgs{
		Root:             p.tree.Root(),
		Index:            index,
		Height:           p.tree.Height(),
		Security:         p.tree.Security(),
		Message:          message,
		VerifyingKey:     leaf.Public,
		AuthPath:         authPath,
		NextRoot:         nextRoot,
		NextRootSecurity: nextRootSecurity,
		Signature:        signature,
		ChannelPassword:  p.channelPassword,
		MessagePassword:  messagePassword,
		Tag:              tag,
	})
	if nil != err {
		return nil, err
	}

	p.log.Debugf("composed index: %d address: %s records: %d", index, address, len(records))

	return &PreparedMessage{
		Index:            index,
		Message:          message,
		Address:          address,
		NextRoot:         nextRoot,
		NextRootSecurity: nextRootSecurity,
		Records:          records,
	}, nil
}

// PublishMessageTransfers - the submission half of publishing
//
// on success the local mirror and the cursor advance; the index is
// burned even if the caller discards the result
func (p *Publisher) PublishMessageTransfers(prepared *PreparedMessage) (*Result, error) {
	if nil == p.ledger {
		return nil, fault.ErrNotInitialised
	}

	p.RLock()
	_, used := p.messages[prepared.Index]
	p.RUnlock()
	if used {
		return nil, fault.ErrIndexUsed
	}

	submitted, err := p.ledger.Submit(prepared.Records, p.depth, p.mwm)
	if nil != err {
		p.log.Errorf("submit index: %d error: %s", prepared.Index, err)
		return nil, err
	}

	p.Lock()
	p.messages[prepared.Index] = prepared.Message
	if "" != prepared.NextRoot {
		p.branches[prepared.Index] = prepared.NextRoot
		p.branchSecurity[prepared.Index] = prepared.NextRootSecurity
	}
	if prepared.Index+1 > p.cursor {
		p.cursor = prepared.Index + 1
	}
	cursor := p.cursor
	p.Unlock()

	if p.mirror && store.IsInitialised() {
		root := p.tree.RootTrytes()
		key := store.IndexKey(root, prepared.Index)
		store.Pool.Messages.Put(key, []byte(prepared.Message))
		if "" != prepared.NextRoot {
			store.Pool.Branches.Put(key, []byte(prepared.NextRoot))
		}
		cursorValue := make([]byte, 8)
		binary.BigEndian.PutUint64(cursorValue, cursor)
		store.Pool.Cursors.Put(store.RootKey(root), cursorValue)
	}

	bundle := trinary.Hash("")
	if len(submitted) > 0 {
		bundle = submitted[0].Bundle
	}

	p.log.Infof("published index: %d bundle: %s", prepared.Index, bundle)

	return &Result{
		Index:   prepared.Index,
		Address: prepared.Address,
		Bundle:  bundle,
		Records: submitted,
	}, nil
}
