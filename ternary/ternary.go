// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ternary

import (
	"strings"

	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/curl"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/fault"
)

// sizes of the fixed protocol units
const (
	TritsPerTryte = 3

	// one signature fragment: 27 hash widths
	FragmentTrinarySize = 27 * consts.HashTrinarySize
	FragmentTrytesSize  = FragmentTrinarySize / TritsPerTryte

	// radix for the tryte alphabet
	TryteRadix = 27
)

// SumTrits - trit-wise saturating sum of two trit strings
//
// 2 folds to -1 and -2 folds to +1, there is no carry
// the shorter operand is treated as zero extended
func SumTrits(a trinary.Trits, b trinary.Trits) trinary.Trits {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	result := make(trinary.Trits, n)
	for i := 0; i < n; i += 1 {
		var ta, tb int8
		if i < len(a) {
			ta = a[i]
		}
		if i < len(b) {
			tb = b[i]
		}
		result[i] = foldTrit(ta + tb)
	}
	return result
}

// SubtractTrits - trit-wise saturating difference of two trit strings
//
// inverse of SumTrits: SubtractTrits(SumTrits(a, b), b) == a
func SubtractTrits(a trinary.Trits, b trinary.Trits) trinary.Trits {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	result := make(trinary.Trits, n)
	for i := 0; i < n; i += 1 {
		var ta, tb int8
		if i < len(a) {
			ta = a[i]
		}
		if i < len(b) {
			tb = b[i]
		}
		result[i] = foldTrit(ta - tb)
	}
	return result
}

// fold a two-trit sum back into balanced range
func foldTrit(t int8) int8 {
	switch t {
	case 2:
		return -1
	case -2:
		return 1
	default:
		return t
	}
}

// PadTritsMultiple - zero extend trits to the next multiple of a block size
func PadTritsMultiple(t trinary.Trits, block int) trinary.Trits {
	size := (len(t) + block - 1) / block * block
	padded := make(trinary.Trits, size)
	copy(padded, t)
	return padded
}

// PadTrytes - extend trytes with 9s to a given size
func PadTrytes(t trinary.Trytes, size int) trinary.Trytes {
	if len(t) >= size {
		return t
	}
	return t + trinary.Trytes(strings.Repeat("9", size-len(t)))
}

// PadTrytesMultiple - extend trytes with 9s to the next multiple of a block size
func PadTrytesMultiple(t trinary.Trytes, block int) trinary.Trytes {
	size := (len(t) + block - 1) / block * block
	return PadTrytes(t, size)
}

// IntToTrytes - encode a non-negative integer as big-endian radix-27 trytes
//
// the alphabet is taken positionally: 9=0, A=1 … Z=26
func IntToTrytes(value int64, size int) trinary.Trytes {
	b := make([]byte, size)
	v := value
	for i := size - 1; i >= 0; i -= 1 {
		b[i] = consts.TryteAlphabet[v%TryteRadix]
		v /= TryteRadix
	}
	return trinary.Trytes(b)
}

// TrytesToInt - decode big-endian radix-27 trytes to an integer
//
// characters on the negative half of the balanced alphabet decode
// as their positional values 14…26
func TrytesToInt(t trinary.Trytes) int64 {
	v := int64(0)
	for i := 0; i < len(t); i += 1 {
		v = v*TryteRadix + int64(strings.IndexByte(consts.TryteAlphabet, t[i]))
	}
	return v
}

// IndexTrits - the trit representation of a message index
//
// this is the form added to roots, addresses and keys; it must stay
// consistent across address, key and public password derivation
func IndexTrits(index uint64) trinary.Trits {
	return trinary.MustTrytesToTrits(IntToTrytes(int64(index), 6))
}

// Subseed - derive the subseed for one leaf
//
// the index is added to the seed trits in balanced ternary with carry,
// the result is hashed once
func Subseed(seed trinary.Trytes, index uint64) (trinary.Trits, error) {
	if consts.HashTrytesSize != len(seed) {
		return nil, fault.ErrInvalidSeed
	}
	seedTrits, err := trinary.TrytesToTrits(seed)
	if nil != err {
		return nil, fault.ErrInvalidSeed
	}

	incremented := trinary.AddTrits(seedTrits, trinary.IntToTrits(int64(index)))

	c := curl.NewCurl()
	err = c.Absorb(PadTritsMultiple(incremented, consts.HashTrinarySize))
	if nil != err {
		return nil, err
	}
	return c.Squeeze(consts.HashTrinarySize)
}
