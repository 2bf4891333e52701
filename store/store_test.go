// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package store_test

import (
	"os"
	"strings"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/iotaledger/iota.go/trinary"
	"github.com/stretchr/testify/assert"

	"github.com/cr0ssing/raam.go/store"
)

const (
	testingDirName   = "testing"
	databaseFileName = testingDirName + "/test.leveldb"
)

func removeFiles() {
	os.RemoveAll(testingDirName)
}

func setup(t *testing.T) {
	removeFiles()
	_ = os.Mkdir(testingDirName, 0700)

	logging := logger.Configuration{
		Directory: testingDirName,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}
	_ = logger.Initialise(logging)

	err := store.Initialise(databaseFileName)
	if nil != err {
		t.Fatalf("store initialise error: %s", err)
	}
}

func teardown(t *testing.T) {
	store.Finalise()
	logger.Finalise()
	removeFiles()
}

var testRoot = trinary.Trytes(strings.Repeat("R", 81))

func TestPutGet(t *testing.T) {
	setup(t)
	defer teardown(t)

	key := store.IndexKey(testRoot, 3)

	assert.False(t, store.Pool.Messages.Has(key), "phantom entry")
	assert.Nil(t, store.Pool.Messages.Get(key), "phantom value")

	store.Pool.Messages.Put(key, []byte("HELLO"))
	assert.True(t, store.Pool.Messages.Has(key), "entry not stored")
	assert.Equal(t, []byte("HELLO"), store.Pool.Messages.Get(key), "wrong value")

	// pools are namespaced by prefix
	assert.False(t, store.Pool.Branches.Has(key), "prefixes collide")

	store.Pool.Messages.Delete(key)
	assert.False(t, store.Pool.Messages.Has(key), "entry not deleted")
}

func TestIndexKey(t *testing.T) {
	one := store.IndexKey(testRoot, 1)
	two := store.IndexKey(testRoot, 2)
	assert.NotEqual(t, one, two, "keys collide")
	assert.Equal(t, len(testRoot)+8, len(one), "wrong key length")
}

func TestDoubleInitialise(t *testing.T) {
	setup(t)
	defer teardown(t)

	err := store.Initialise(databaseFileName)
	assert.Error(t, err, "second initialise accepted")
	assert.True(t, store.IsInitialised(), "store lost")
}
