// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ternary_test

import (
	"strings"
	"testing"

	"github.com/iotaledger/iota.go/trinary"
	"github.com/stretchr/testify/assert"

	"github.com/cr0ssing/raam.go/ternary"
)

func TestSumTrits(t *testing.T) {
	a := trinary.Trits{1, 1, -1, 0, -1}
	b := trinary.Trits{1, -1, -1, 0, 1}

	sum := ternary.SumTrits(a, b)

	// 1+1 folds to -1 and -1-1 folds to +1
	assert.Equal(t, trinary.Trits{-1, 0, 1, 0, 0}, sum, "wrong sum")
}

func TestSumTritsZeroExtends(t *testing.T) {
	a := trinary.Trits{1, -1, 0, 1}
	b := trinary.Trits{1}

	sum := ternary.SumTrits(a, b)
	assert.Equal(t, trinary.Trits{-1, -1, 0, 1}, sum, "wrong extended sum")
}

func TestSubtractInvertsSum(t *testing.T) {
	a := trinary.Trits{1, 0, -1, 1, 1, 0, -1, -1, 0}
	b := trinary.Trits{-1, 1, 1, 0, -1, -1, 0, 1, 1}

	restored := ternary.SubtractTrits(ternary.SumTrits(a, b), b)
	assert.Equal(t, a, restored, "subtract did not invert sum")
}

func TestIntToTrytes(t *testing.T) {
	testData := []struct {
		value  int64
		size   int
		trytes trinary.Trytes
	}{
		{0, 1, "9"},
		{1, 1, "A"},
		{26, 1, "Z"},
		{27, 2, "A9"},
		{55, 2, "BA"},
		{0, 6, "999999"},
		{19682, 3, "ZZZ"},
	}

	for i, item := range testData {
		trytes := ternary.IntToTrytes(item.value, item.size)
		assert.Equal(t, item.trytes, trytes, "%d: wrong trytes", i)

		value := ternary.TrytesToInt(trytes)
		assert.Equal(t, item.value, value, "%d: wrong round trip", i)
	}
}

func TestTrytesToIntNegativeHalf(t *testing.T) {
	// characters on the balanced-negative half keep their positional
	// values when decoding
	assert.Equal(t, int64(14), ternary.TrytesToInt("N"), "wrong wrap around")
	assert.Equal(t, int64(26), ternary.TrytesToInt("Z"), "wrong wrap around")
}

func TestPadTritsMultiple(t *testing.T) {
	padded := ternary.PadTritsMultiple(trinary.Trits{1, -1}, 243)
	assert.Equal(t, 243, len(padded), "wrong padded length")
	assert.Equal(t, int8(1), padded[0], "wrong content")
	assert.Equal(t, int8(-1), padded[1], "wrong content")
	assert.Equal(t, int8(0), padded[2], "wrong padding")

	exact := ternary.PadTritsMultiple(make(trinary.Trits, 486), 243)
	assert.Equal(t, 486, len(exact), "padding changed an exact multiple")
}

func TestPadTrytesMultiple(t *testing.T) {
	padded := ternary.PadTrytesMultiple("ABC", 81)
	assert.Equal(t, 81, len(padded), "wrong padded length")
	assert.Equal(t, trinary.Trytes("ABC"), padded[0:3], "wrong content")
	assert.Equal(t, trinary.Trytes(strings.Repeat("9", 78)), padded[3:], "wrong padding")
}

func TestSubseed(t *testing.T) {
	seed := trinary.Trytes(strings.Repeat("A", 81))

	one, err := ternary.Subseed(seed, 0)
	assert.NoError(t, err, "subseed error")
	assert.Equal(t, 243, len(one), "wrong subseed length")

	same, err := ternary.Subseed(seed, 0)
	assert.NoError(t, err, "subseed error")
	assert.Equal(t, one, same, "subseed is not deterministic")

	other, err := ternary.Subseed(seed, 1)
	assert.NoError(t, err, "subseed error")
	assert.NotEqual(t, one, other, "distinct indexes share a subseed")
}

func TestSubseedRejectsBadSeed(t *testing.T) {
	_, err := ternary.Subseed("SHORT", 0)
	assert.Error(t, err, "short seed accepted")

	_, err = ternary.Subseed(trinary.Trytes(strings.Repeat("a", 81)), 0)
	assert.Error(t, err, "invalid characters accepted")
}

func TestIndexTrits(t *testing.T) {
	assert.Equal(t, 18, len(ternary.IndexTrits(0)), "wrong width")
	assert.NotEqual(t, ternary.IndexTrits(3), ternary.IndexTrits(4), "indexes collide")
}
