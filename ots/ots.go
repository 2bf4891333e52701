// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ots

import (
	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/curl"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/ternary"
)

// key geometry
const (
	SlotsPerSecurity = 27 // hash chains per security gram

	minTryteValue = -13
	maxTryteValue = 13

	// total chain length; a slot is hashed chainRounds times from
	// private key to verifying key
	chainRounds = 2 * maxTryteValue
)

// MinSecurity / MaxSecurity - the allowed range of security levels
const (
	MinSecurity = 1
	MaxSecurity = 4
)

// ValidSecurity - check a security level is usable
func ValidSecurity(security int) bool {
	return security >= MinSecurity && security <= MaxSecurity
}

// Key - derive a private key from a subseed
//
// the key is security·27 slots of 243 trits squeezed consecutively
// from a single sponge
func Key(subseed trinary.Trits, security int) (trinary.Trits, error) {
	if !ValidSecurity(security) {
		return nil, fault.ErrInvalidSecurityLevel
	}
	if consts.HashTrinarySize != len(subseed) {
		return nil, fault.ErrInvalidSeed
	}

	c := curl.NewCurl()
	err := c.Absorb(subseed)
	if nil != err {
		return nil, err
	}
	return c.Squeeze(security * ternary.FragmentTrinarySize)
}

// VerifyingKey - compress a private key to its public form
//
// every slot is moved to the end of its hash chain, then all slots are
// absorbed and the digest squeezed to security·243 trits
func VerifyingKey(key trinary.Trits) (trinary.Trits, error) {
	security := len(key) / ternary.FragmentTrinarySize
	if !ValidSecurity(security) || 0 != len(key)%ternary.FragmentTrinarySize {
		return nil, fault.ErrInvalidSecurityLevel
	}

	d := curl.NewCurl()
	for i := 0; i < security*SlotsPerSecurity; i += 1 {
		slot, err := hashRounds(key[i*consts.HashTrinarySize:(i+1)*consts.HashTrinarySize], chainRounds)
		if nil != err {
			return nil, err
		}
		err = d.Absorb(slot)
		if nil != err {
			return nil, err
		}
	}
	return d.Squeeze(security * consts.HashTrinarySize)
}

// Digest - the normalised message digest
//
// the message trits are padded to a multiple of 243 and digested; the
// resulting tryte values are clamped below 13 and balanced to zero sum
// so that the total chain work of a signature is constant and no slot
// is ever released unhashed
func Digest(message trinary.Trits, security int) ([]int8, error) {
	if !ValidSecurity(security) {
		return nil, fault.ErrInvalidSecurityLevel
	}

	used := security * SlotsPerSecurity

	// squeeze whole 243-trit grams, enough to cover all used values
	width := (used*ternary.TritsPerTryte + consts.HashTrinarySize - 1) /
		consts.HashTrinarySize * consts.HashTrinarySize

	c := curl.NewCurl()
	err := c.Absorb(ternary.PadTritsMultiple(message, consts.HashTrinarySize))
	if nil != err {
		return nil, err
	}
	squeezed, err := c.Squeeze(width)
	if nil != err {
		return nil, err
	}

	digest := make([]int8, used)
	sum := 0
	for i := 0; i < used; i += 1 {
		v := squeezed[i*3] + 3*squeezed[i*3+1] + 9*squeezed[i*3+2]
		// 13 would release a raw private slot
		if maxTryteValue == v {
			v = maxTryteValue - 1
		}
		digest[i] = v
		sum += int(v)
	}

	// rebalance to zero sum
	for i := 0; sum > 0; {
		if digest[i] > minTryteValue {
			digest[i] -= 1
			sum -= 1
		} else {
			i += 1
		}
	}
	for i := 0; sum < 0; {
		if digest[i] < maxTryteValue-1 {
			digest[i] += 1
			sum += 1
		} else {
			i += 1
		}
	}

	return digest, nil
}

// Sign - produce the detached signature for a normalised digest
func Sign(key trinary.Trits, digest []int8) (trinary.Trits, error) {
	security := len(digest) / SlotsPerSecurity
	if !ValidSecurity(security) || 0 != len(digest)%SlotsPerSecurity {
		return nil, fault.ErrInvalidSecurityLevel
	}
	if security*ternary.FragmentTrinarySize != len(key) {
		return nil, fault.ErrInvalidLength
	}

	signature := make(trinary.Trits, len(key))
	for i, d := range digest {
		slot, err := hashRounds(key[i*consts.HashTrinarySize:(i+1)*consts.HashTrinarySize], int(maxTryteValue-d))
		if nil != err {
			return nil, err
		}
		copy(signature[i*consts.HashTrinarySize:], slot)
	}
	return signature, nil
}

// Verify - check a signature against a normalised digest and a
// verifying key
//
// there is no partial acceptance: any mismatch is a verification error
func Verify(signature trinary.Trits, digest []int8, verifyingKey trinary.Trits) error {
	security := len(digest) / SlotsPerSecurity
	if !ValidSecurity(security) || 0 != len(digest)%SlotsPerSecurity {
		return fault.ErrInvalidSecurityLevel
	}
	if security*ternary.FragmentTrinarySize != len(signature) {
		return fault.ErrVerificationFailed
	}
	if security*consts.HashTrinarySize != len(verifyingKey) {
		return fault.ErrVerificationFailed
	}

	d := curl.NewCurl()
	for i, v := range digest {
		slot, err := hashRounds(signature[i*consts.HashTrinarySize:(i+1)*consts.HashTrinarySize], int(v-minTryteValue))
		if nil != err {
			return err
		}
		err = d.Absorb(slot)
		if nil != err {
			return err
		}
	}
	computed, err := d.Squeeze(security * consts.HashTrinarySize)
	if nil != err {
		return err
	}

	for i, t := range computed {
		if t != verifyingKey[i] {
			return fault.ErrVerificationFailed
		}
	}
	return nil
}

// iterate the sponge hash over one 243-trit slot
func hashRounds(slot trinary.Trits, rounds int) (trinary.Trits, error) {
	current := make(trinary.Trits, len(slot))
	copy(current, slot)
	for r := 0; r < rounds; r += 1 {
		c := curl.NewCurl()
		err := c.Absorb(current)
		if nil != err {
			return nil, err
		}
		current, err = c.Squeeze(consts.HashTrinarySize)
		if nil != err {
			return nil, err
		}
	}
	return current, nil
}
