// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package record

import (
	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/cipher"
	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/merkle"
	"github.com/cr0ssing/raam.go/ots"
	"github.com/cr0ssing/raam.go/ternary"
)

// AssembleArgs - everything needed to build the records of one message
type AssembleArgs struct {
	Root             trinary.Trits   // channel root
	Index            uint64          // message index
	Height           int             // channel height
	Security         int             // channel security level
	Message          trinary.Trytes  // the message itself
	VerifyingKey     trinary.Trits   // leaf public key
	AuthPath         []trinary.Trits // height sibling hashes, leaves first
	NextRoot         trinary.Trytes  // optional branch root
	NextRootSecurity int             // zero when NextRoot is empty
	Signature        trinary.Trits   // detached signature
	ChannelPassword  trinary.Trytes  // optional
	MessagePassword  trinary.Trytes  // optional, already resolved
	Tag              trinary.Trytes  // optional record tag
}

// Assemble - build the fixed-size ledger records of one message
//
// the returned records carry address, tag and fragment only; bundle
// assembly and sequence indexes are the ledger client's concern
func Assemble(args *AssembleArgs) (transaction.Transactions, error) {

	if _, err := trinary.TrytesToTrits(args.Message); nil != err && "" != args.Message {
		return nil, fault.ErrInvalidMessage
	}
	if len(args.Message) >= MaxMessageTrytes {
		return nil, fault.ErrInvalidLength
	}
	if !merkle.ValidHeight(args.Height) {
		return nil, fault.ErrInvalidHeight
	}
	if !ots.ValidSecurity(args.Security) {
		return nil, fault.ErrInvalidSecurityLevel
	}
	if args.Index >= uint64(1)<<uint(args.Height) {
		return nil, fault.ErrInvalidIndex
	}
	if args.Height != len(args.AuthPath) {
		return nil, fault.ErrInvalidHeight
	}
	if args.Security*ternary.FragmentTrinarySize != len(args.Signature) {
		return nil, fault.ErrInvalidLength
	}
	if "" == args.NextRoot {
		if 0 != args.NextRootSecurity {
			return nil, fault.ErrInvalidSecurityLevel
		}
	} else {
		if !ots.ValidSecurity(args.NextRootSecurity) {
			return nil, fault.ErrInvalidSecurityLevel
		}
		if args.NextRootSecurity*consts.HashTrytesSize != len(args.NextRoot) {
			return nil, fault.ErrInvalidLength
		}
	}

	address, err := Address(args.Root, args.Index, args.ChannelPassword)
	if nil != err {
		return nil, err
	}

	// framing header
	header := ternary.IntToTrytes(int64(args.Index), IndexTrytesSize) +
		indicator(args.Security, args.NextRootSecurity) +
		ternary.IntToTrytes(int64(args.Height), heightTrytesSize) +
		ternary.IntToTrytes(int64(len(args.Message)), LengthTrytesSize)

	// body: message, verifying key, auth path, optional branch root
	body := args.Message + trinary.MustTritsToTrytes(args.VerifyingKey)
	for _, hash := range args.AuthPath {
		body += trinary.MustTritsToTrytes(hash)
	}
	body += args.NextRoot

	payload := ternary.PadTrytesMultiple(header+body, ternary.FragmentTrytesSize)

	key, err := MessageKey(args.Root, args.Index, args.ChannelPassword, args.MessagePassword)
	if nil != err {
		return nil, err
	}
	encrypted, err := cipher.Encrypt(payload, key, "")
	if nil != err {
		return nil, err
	}

	// signature records travel in clear trytes
	full := encrypted + trinary.MustTritsToTrytes(args.Signature)

	tag := args.Tag
	if "" == tag {
		tag = DefaultTag
	}

	count := len(full) / ternary.FragmentTrytesSize
	records := make(transaction.Transactions, count)
	for i := 0; i < count; i += 1 {
		records[i] = transaction.Transaction{
			Address:                  address,
			Value:                    0,
			SignatureMessageFragment: full[i*ternary.FragmentTrytesSize : (i+1)*ternary.FragmentTrytesSize],
			Tag:                      tag,
			ObsoleteTag:              tag,
		}
	}

	return records, nil
}
