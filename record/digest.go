// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package record

import (
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/merkle"
	"github.com/cr0ssing/raam.go/ots"
	"github.com/cr0ssing/raam.go/ternary"
)

// SigningDigest - the normalised digest both sides sign and verify
//
// the signed material is the message followed by index, verifying key,
// optional branch root and the full authentication path, so a
// signature binds the message to its exact position in the channel
func SigningDigest(message trinary.Trytes, index uint64, verifyingKey trinary.Trits, nextRoot trinary.Trytes, authPath []trinary.Trits, security int) ([]int8, error) {

	input := message + ternary.IntToTrytes(int64(index), IndexTrytesSize) +
		trinary.MustTritsToTrytes(verifyingKey) + nextRoot
	for _, hash := range authPath {
		input += trinary.MustTritsToTrytes(hash)
	}

	trits, err := trinary.TrytesToTrits(input)
	if nil != err {
		return nil, fault.ErrInvalidMessage
	}
	return ots.Digest(trits, security)
}

// Verify - authenticate a parsed message against a channel root
//
// a bad signature is a verification failure, a key that does not
// belong to the root is an authentication failure; neither touches
// any other index
func Verify(m *Message, root trinary.Trits) error {
	digest, err := SigningDigest(m.Message, m.Index, m.VerifyingKey, m.NextRoot, m.AuthPath, m.Security)
	if nil != err {
		return err
	}
	err = ots.Verify(m.Signature, digest, m.VerifyingKey)
	if nil != err {
		return err
	}
	if !merkle.VerifyPath(root, m.VerifyingKey, m.Index, m.AuthPath, m.Security) {
		return fault.ErrAuthenticationFailed
	}
	return nil
}

// RecoverRoot - recompute the channel root a message claims
//
// used by public fetching where no root is known in advance; the
// signature must still verify against the recovered root
func RecoverRoot(m *Message) (trinary.Trits, error) {
	return merkle.RootFromPath(m.VerifyingKey, m.Index, m.AuthPath, m.Security)
}
