// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyfile_test

import (
	"io/ioutil"
	"os"
	"strings"
	"testing"

	"github.com/iotaledger/iota.go/trinary"
	"github.com/stretchr/testify/assert"

	"github.com/cr0ssing/raam.go/keyfile"
	"github.com/cr0ssing/raam.go/merkle"
)

const testFileName = "test-channel.keys"

var testSeed = trinary.Trytes("KEYFILETESTSEED" + strings.Repeat("9", 66))

func removeFiles() {
	os.RemoveAll(testFileName)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	removeFiles()
	defer removeFiles()

	tree, err := merkle.NewTree(testSeed, 2, 1, nil)
	assert.NoError(t, err, "tree error")

	err = keyfile.Save(testFileName, tree)
	assert.NoError(t, err, "save error")

	loaded, err := keyfile.Load(testFileName)
	assert.NoError(t, err, "load error")

	assert.Equal(t, tree.Height(), loaded.Height(), "wrong height")
	assert.Equal(t, tree.Security(), loaded.Security(), "wrong security")
	assert.Equal(t, tree.Root(), loaded.Root(), "wrong root")

	for i := uint64(0); i < tree.Capacity(); i += 1 {
		saved, err := tree.Leaf(i)
		assert.NoError(t, err, "leaf error")
		restored, err := loaded.Leaf(i)
		assert.NoError(t, err, "leaf error")
		assert.Equal(t, saved.Private, restored.Private, "leaf %d private key differs", i)
		assert.Equal(t, saved.Public, restored.Public, "leaf %d public key differs", i)
	}

	path, err := loaded.AuthPath(2)
	assert.NoError(t, err, "auth path error")
	leaf, err := loaded.Leaf(2)
	assert.NoError(t, err, "leaf error")
	assert.True(t, merkle.VerifyPath(loaded.Root(), leaf.Public, 2, path, 1), "loaded tree does not verify")
}

func TestWriterDuringConstruction(t *testing.T) {
	removeFiles()
	defer removeFiles()

	w, err := keyfile.NewWriter(testFileName)
	assert.NoError(t, err, "writer error")

	tree, err := merkle.NewTree(testSeed, 1, 1, &merkle.Options{Sink: w})
	assert.NoError(t, err, "tree error")
	assert.NoError(t, w.Close(), "close error")

	loaded, err := keyfile.Load(testFileName)
	assert.NoError(t, err, "load error")
	assert.Equal(t, tree.Root(), loaded.Root(), "streamed file differs")
}

func TestLoadRejectsGarbage(t *testing.T) {
	removeFiles()
	defer removeFiles()

	err := ioutil.WriteFile(testFileName, []byte("not json\n"), 0600)
	assert.NoError(t, err, "write error")

	_, err = keyfile.Load(testFileName)
	assert.Error(t, err, "garbage accepted")
}
