// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cipher - keyed sponge stream encryption
//
// the sponge is keyed once and squeezed for one 243-trit mask per
// 81-tryte chunk; its state carries across chunks and is never reset
package cipher

import (
	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/curl"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/ternary"
)

// Encrypt - mask a trytes string with a keyed sponge stream
//
// trits of the mask are added with the saturating trinary sum
func Encrypt(message trinary.Trytes, key trinary.Trytes, salt trinary.Trytes) (trinary.Trytes, error) {
	return process(message, key, salt, ternary.SumTrits)
}

// Decrypt - the inverse of Encrypt with the same key and salt
func Decrypt(message trinary.Trytes, key trinary.Trytes, salt trinary.Trytes) (trinary.Trytes, error) {
	return process(message, key, salt, ternary.SubtractTrits)
}

func process(message trinary.Trytes, key trinary.Trytes, salt trinary.Trytes, apply func(trinary.Trits, trinary.Trits) trinary.Trits) (trinary.Trytes, error) {

	c, err := keyedSponge(key, salt)
	if nil != err {
		return "", err
	}

	result := make([]byte, 0, len(message))

	for offset := 0; offset < len(message); offset += consts.HashTrytesSize {
		end := offset + consts.HashTrytesSize
		if end > len(message) {
			end = len(message)
		}

		chunk, err := trinary.TrytesToTrits(message[offset:end])
		if nil != err {
			return "", err
		}
		mask, err := c.Squeeze(consts.HashTrinarySize)
		if nil != err {
			return "", err
		}

		processed := apply(chunk, mask[:len(chunk)])
		result = append(result, string(trinary.MustTritsToTrytes(processed))...)
	}

	return trinary.Trytes(result), nil
}

// absorb key and optional salt, each padded to whole 243-trit grams
func keyedSponge(key trinary.Trytes, salt trinary.Trytes) (*curl.Curl, error) {
	c := curl.NewCurl()

	keyTrits, err := trinary.TrytesToTrits(key)
	if nil != err {
		return nil, err
	}
	err = c.Absorb(ternary.PadTritsMultiple(keyTrits, consts.HashTrinarySize))
	if nil != err {
		return nil, err
	}

	if "" != salt {
		saltTrits, err := trinary.TrytesToTrits(salt)
		if nil != err {
			return nil, err
		}
		err = c.Absorb(ternary.PadTritsMultiple(saltTrits, consts.HashTrinarySize))
		if nil != err {
			return nil, err
		}
	}

	return c.(*curl.Curl), nil
}
