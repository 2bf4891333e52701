// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package record - the on-ledger message codec
//
// a message occupies one bundle: an encrypted stream of header, body
// and padding split into 2187-tryte records, followed by the clear
// detached signature in security further records
package record

import (
	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/curl"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/ternary"
)

// header layout, big-endian radix-27 trytes
const (
	IndexTrytesSize     = 6
	indicatorTrytesSize = 1
	heightTrytesSize    = 1
	LengthTrytesSize    = 3

	HeaderTrytesSize = IndexTrytesSize + indicatorTrytesSize + heightTrytesSize + LengthTrytesSize

	// message length is bounded by its 3-tryte length field
	MaxMessageTrytes = ternary.TryteRadix * ternary.TryteRadix * ternary.TryteRadix
)

// default tag attached to records
const DefaultTag = "RAAM99999999999999999999999"

// Address - the ledger address of one channel message
//
// the index is folded into the root with the saturating sum, then
// hashed together with the padded channel password when one is set
func Address(root trinary.Trits, index uint64, channelPassword trinary.Trytes) (trinary.Hash, error) {
	subroot := ternary.SumTrits(root, ternary.IndexTrits(index))

	c := curl.NewCurl()
	err := c.Absorb(ternary.PadTritsMultiple(subroot, consts.HashTrinarySize))
	if nil != err {
		return "", err
	}
	if "" != channelPassword {
		passwordTrits, err := trinary.TrytesToTrits(channelPassword)
		if nil != err {
			return "", fault.ErrInvalidMessage
		}
		err = c.Absorb(ternary.PadTritsMultiple(passwordTrits, consts.HashTrinarySize))
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

// MessageKey - the stream cipher key for one message
//
// basis precedence: message password, then channel password, then the
// channel root itself; the index is folded in with the saturating sum
func MessageKey(root trinary.Trits, index uint64, channelPassword trinary.Trytes, messagePassword trinary.Trytes) (trinary.Trytes, error) {

	var basis trinary.Trits
	switch {
	case "" != messagePassword:
		t, err := trinary.TrytesToTrits(messagePassword)
		if nil != err {
			return "", fault.ErrInvalidMessage
		}
		basis = t
	case "" != channelPassword:
		t, err := trinary.TrytesToTrits(channelPassword)
		if nil != err {
			return "", fault.ErrInvalidMessage
		}
		basis = t
	default:
		basis = root
	}

	return trinary.MustTritsToTrytes(ternary.SumTrits(basis, ternary.IndexTrits(index))), nil
}

// PublicPassword - the message password of a public-mode message
//
// subtracting the index makes the effective message key equal to the
// record's own address, so address knowledge alone decrypts; the
// operator is the trit-wise saturating difference, there is no carry
func PublicPassword(address trinary.Hash, index uint64) trinary.Trytes {
	addressTrits := trinary.MustTrytesToTrits(address)
	return trinary.MustTritsToTrytes(ternary.SubtractTrits(addressTrits, ternary.IndexTrits(index)))
}

// pack the security level and a branch indicator into one tryte
func indicator(security int, nextRootSecurity int) trinary.Trytes {
	return ternary.IntToTrytes(int64(security-1+4*nextRootSecurity), indicatorTrytesSize)
}

// unpack the indicator tryte
func parseIndicator(t trinary.Trytes) (security int, nextRootSecurity int, err error) {
	v := ternary.TrytesToInt(t)
	security = int(v%4) + 1
	nextRootSecurity = int(v / 4)
	if nextRootSecurity > 4 {
		return 0, 0, fault.ErrWrongSecurity
	}
	return security, nextRootSecurity, nil
}
