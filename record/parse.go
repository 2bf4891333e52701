// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package record

import (
	"sort"

	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/cipher"
	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/merkle"
	"github.com/cr0ssing/raam.go/ots"
	"github.com/cr0ssing/raam.go/ternary"
)

// ParseArgs - expectations and key material for parsing one bundle
type ParseArgs struct {
	Address         trinary.Hash   // the address the records were found at
	Root            trinary.Trits  // nil when fetching public records
	Index           uint64         // expected index
	HasIndex        bool           // false accepts any header index
	Height          int            // expected height, zero accepts any
	Security        int            // expected security, zero accepts any
	ChannelPassword trinary.Trytes // optional
	MessagePassword trinary.Trytes // optional
	Public          bool           // derive the key from the address alone
}

// Message - one fully parsed channel message
type Message struct {
	Index            uint64
	Height           int
	Security         int
	Message          trinary.Trytes
	VerifyingKey     trinary.Trits
	AuthPath         []trinary.Trits
	NextRoot         trinary.Trytes
	NextRootSecurity int
	Signature        trinary.Trits
	Address          trinary.Hash
	Bundle           trinary.Hash
}

// Parse - decode and disassemble the records of one bundle
//
// the inverse of Assemble; signature checking is a separate step
func Parse(records transaction.Transactions, args *ParseArgs) (*Message, error) {

	if len(records) < 2 {
		return nil, fault.ErrShortMessage
	}

	ordered := make(transaction.Transactions, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CurrentIndex < ordered[j].CurrentIndex
	})

	// a public message's key is its own address
	var key trinary.Trytes
	if args.Public {
		key = trinary.Trytes(args.Address)
	} else {
		k, err := MessageKey(args.Root, headerIndexHint(args), args.ChannelPassword, args.MessagePassword)
		if nil != err {
			return nil, err
		}
		key = k
	}

	// the header is inside the first fragment; decrypting the first
	// fragment alone yields the stream prefix since fragments align
	// with cipher chunks
	first, err := cipher.Decrypt(ternary.PadTrytes(ordered[0].SignatureMessageFragment, ternary.FragmentTrytesSize), key, "")
	if nil != err {
		return nil, err
	}

	index := uint64(ternary.TrytesToInt(first[0:IndexTrytesSize]))
	security, nextRootSecurity, err := parseIndicator(first[IndexTrytesSize : IndexTrytesSize+indicatorTrytesSize])
	if nil != err {
		return nil, err
	}
	height := int(ternary.TrytesToInt(first[IndexTrytesSize+indicatorTrytesSize : IndexTrytesSize+indicatorTrytesSize+heightTrytesSize]))
	messageLength := int(ternary.TrytesToInt(first[HeaderTrytesSize-LengthTrytesSize : HeaderTrytesSize]))

	if args.HasIndex && args.Index != index {
		return nil, fault.ErrWrongIndex
	}
	if !merkle.ValidHeight(height) || (0 != args.Height && args.Height != height) {
		return nil, fault.ErrWrongHeight
	}
	if !ots.ValidSecurity(security) || (0 != args.Security && args.Security != security) {
		return nil, fault.ErrWrongSecurity
	}
	if index >= uint64(1)<<uint(height) {
		return nil, fault.ErrWrongIndex
	}

	// total stream length: header, message, verifying key, auth path
	// hashes and the optional branch root
	bodyLength := messageLength +
		(height+1)*security*consts.HashTrytesSize +
		nextRootSecurity*consts.HashTrytesSize
	payloadRecords := (HeaderTrytesSize + bodyLength + ternary.FragmentTrytesSize - 1) / ternary.FragmentTrytesSize

	if len(ordered) < payloadRecords+security {
		return nil, fault.ErrShortMessage
	}

	// decrypt the full payload stream in one pass
	stream := trinary.Trytes("")
	for i := 0; i < payloadRecords; i += 1 {
		fragment := ternary.PadTrytes(ordered[i].SignatureMessageFragment, ternary.FragmentTrytesSize)
		stream += fragment
	}
	payload, err := cipher.Decrypt(stream, key, "")
	if nil != err {
		return nil, err
	}

	offset := HeaderTrytesSize
	message := payload[offset : offset+messageLength]
	offset += messageLength

	verifyingKey, err := trinary.TrytesToTrits(payload[offset : offset+security*consts.HashTrytesSize])
	if nil != err {
		return nil, err
	}
	offset += security * consts.HashTrytesSize

	authPath := make([]trinary.Trits, height)
	for l := 0; l < height; l += 1 {
		hash, err := trinary.TrytesToTrits(payload[offset : offset+security*consts.HashTrytesSize])
		if nil != err {
			return nil, err
		}
		authPath[l] = hash
		offset += security * consts.HashTrytesSize
	}

	nextRoot := trinary.Trytes("")
	if nextRootSecurity > 0 {
		nextRoot = payload[offset : offset+nextRootSecurity*consts.HashTrytesSize]
	}

	// the clear signature records follow the payload
	signature := make(trinary.Trits, 0, security*ternary.FragmentTrinarySize)
	for i := payloadRecords; i < payloadRecords+security; i += 1 {
		fragment := ternary.PadTrytes(ordered[i].SignatureMessageFragment, ternary.FragmentTrytesSize)
		trits, err := trinary.TrytesToTrits(fragment)
		if nil != err {
			return nil, err
		}
		signature = append(signature, trits...)
	}

	return &Message{
		Index:            index,
		Height:           height,
		Security:         security,
		Message:          message,
		VerifyingKey:     verifyingKey,
		AuthPath:         authPath,
		NextRoot:         nextRoot,
		NextRootSecurity: nextRootSecurity,
		Signature:        signature,
		Address:          ordered[0].Address,
		Bundle:           ordered[0].Bundle,
	}, nil
}

// the index folded into a key derivation before the header is read
//
// non-public parsing always has the expected index: channel readers
// fetch by index, the public path uses the address key instead
func headerIndexHint(args *ParseArgs) uint64 {
	return args.Index
}
