// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cipher_test

import (
	"strings"
	"testing"

	"github.com/iotaledger/iota.go/trinary"
	"github.com/stretchr/testify/assert"

	"github.com/cr0ssing/raam.go/cipher"
)

func TestRoundTrip(t *testing.T) {
	message := trinary.Trytes(strings.Repeat("THEQUICKBROWNFOX9", 200))
	key := trinary.Trytes("SECRETKEY")

	encrypted, err := cipher.Encrypt(message, key, "")
	assert.NoError(t, err, "encrypt error")
	assert.Equal(t, len(message), len(encrypted), "length changed")
	assert.NotEqual(t, message, encrypted, "message unchanged")

	decrypted, err := cipher.Decrypt(encrypted, key, "")
	assert.NoError(t, err, "decrypt error")
	assert.Equal(t, message, decrypted, "round trip failed")
}

func TestChunkBoundaries(t *testing.T) {
	key := trinary.Trytes("BOUNDARY9KEY")

	for _, size := range []int{1, 80, 81, 82, 162, 2187} {
		message := trinary.Trytes(strings.Repeat("M", size))

		encrypted, err := cipher.Encrypt(message, key, "")
		assert.NoError(t, err, "encrypt error")
		decrypted, err := cipher.Decrypt(encrypted, key, "")
		assert.NoError(t, err, "decrypt error")
		assert.Equal(t, message, decrypted, "size %d round trip failed", size)
	}
}

func TestPrefixProperty(t *testing.T) {
	// decrypting a whole-chunk prefix alone must match the prefix of
	// the full decryption; the codec reads headers this way
	key := trinary.Trytes("PREFIX9KEY")
	message := trinary.Trytes(strings.Repeat("PREFIXED9DATA999", 300))

	encrypted, err := cipher.Encrypt(message, key, "")
	assert.NoError(t, err, "encrypt error")

	full, err := cipher.Decrypt(encrypted, key, "")
	assert.NoError(t, err, "decrypt error")

	prefix, err := cipher.Decrypt(encrypted[0:2187], key, "")
	assert.NoError(t, err, "decrypt error")
	assert.Equal(t, full[0:2187], prefix, "prefix decryption diverges")
}

func TestWrongKey(t *testing.T) {
	message := trinary.Trytes(strings.Repeat("SENSITIVE", 27))

	encrypted, err := cipher.Encrypt(message, "RIGHTKEY", "")
	assert.NoError(t, err, "encrypt error")

	garbled, err := cipher.Decrypt(encrypted, "WRONGKEY", "")
	assert.NoError(t, err, "decrypt error")
	assert.NotEqual(t, message, garbled, "wrong key decrypted")
}

func TestSaltChangesStream(t *testing.T) {
	message := trinary.Trytes(strings.Repeat("SALTED", 30))

	plain, err := cipher.Encrypt(message, "KEY", "")
	assert.NoError(t, err, "encrypt error")
	salted, err := cipher.Encrypt(message, "KEY", "SALT")
	assert.NoError(t, err, "encrypt error")
	assert.NotEqual(t, plain, salted, "salt had no effect")

	back, err := cipher.Decrypt(salted, "KEY", "SALT")
	assert.NoError(t, err, "decrypt error")
	assert.Equal(t, message, back, "salted round trip failed")
}
