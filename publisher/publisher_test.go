// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package publisher_test

import (
	"os"
	"strings"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/iotaledger/iota.go/trinary"
	"github.com/stretchr/testify/assert"

	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/publisher"
	"github.com/cr0ssing/raam.go/store"
	"github.com/cr0ssing/raam.go/tangle"
)

const testingDirName = "testing"

var testSeed = trinary.Trytes("PUBLISHERTESTSEED" + strings.Repeat("9", 64))

func setup(t *testing.T) {
	os.RemoveAll(testingDirName)
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
}

func teardown(t *testing.T) {
	os.RemoveAll(testingDirName)
}

func TestPublishAdvancesCursor(t *testing.T) {
	setup(t)
	defer teardown(t)

	ledger := tangle.NewMemory()
	p, err := publisher.New(testSeed, 2, 1, &publisher.Options{Ledger: ledger})
	assert.NoError(t, err, "publisher error")

	assert.Equal(t, uint64(4), p.Capacity(), "wrong capacity")
	assert.Equal(t, uint64(0), p.Cursor(), "wrong initial cursor")

	result, err := p.Publish("ONE", nil)
	assert.NoError(t, err, "publish error")
	assert.Equal(t, uint64(0), result.Index, "wrong index")
	assert.NotEqual(t, trinary.Hash(""), result.Bundle, "no bundle id")
	assert.Equal(t, uint64(1), p.Cursor(), "cursor did not advance")

	message, ok := p.Message(0)
	assert.True(t, ok, "mirror is empty")
	assert.Equal(t, trinary.Trytes("ONE"), message, "wrong mirrored message")
}

func TestPublishValidation(t *testing.T) {
	setup(t)
	defer teardown(t)

	ledger := tangle.NewMemory()
	p, err := publisher.New(testSeed, 1, 1, &publisher.Options{Ledger: ledger})
	assert.NoError(t, err, "publisher error")

	_, err = p.Publish("not trytes", nil)
	assert.Equal(t, fault.ErrInvalidMessage, err, "invalid message accepted")

	_, err = p.PublishAt(2, "TOOFAR", nil)
	assert.Equal(t, fault.ErrInvalidIndex, err, "index past capacity accepted")

	_, err = p.Publish("FIRST", nil)
	assert.NoError(t, err, "publish error")

	_, err = p.PublishAt(0, "AGAIN", nil)
	assert.Equal(t, fault.ErrIndexUsed, err, "reused index accepted")
}

func TestPublicRequiresOpenChannel(t *testing.T) {
	setup(t)
	defer teardown(t)

	ledger := tangle.NewMemory()
	p, err := publisher.New(testSeed, 1, 1, &publisher.Options{
		Ledger:          ledger,
		ChannelPassword: "LOCKED",
	})
	assert.NoError(t, err, "publisher error")

	_, err = p.Publish("OPEN", &publisher.PublishOptions{Public: true})
	assert.Equal(t, fault.ErrPublicNotAllowed, err, "public mode on password channel accepted")
}

func TestTwoPhasePublish(t *testing.T) {
	setup(t)
	defer teardown(t)

	ledger := tangle.NewMemory()
	p, err := publisher.New(testSeed, 1, 1, &publisher.Options{Ledger: ledger})
	assert.NoError(t, err, "publisher error")

	prepared, err := p.CreateMessageTransfers(0, "STAGED", nil)
	assert.NoError(t, err, "create error")
	assert.Equal(t, 2, len(prepared.Records), "wrong record count")

	// nothing is on the ledger and the cursor has not moved
	ids, err := ledger.FindByAddress(prepared.Address)
	assert.NoError(t, err, "find error")
	assert.Equal(t, 0, len(ids), "records submitted early")
	assert.Equal(t, uint64(0), p.Cursor(), "cursor moved early")

	result, err := p.PublishMessageTransfers(prepared)
	assert.NoError(t, err, "publish error")
	assert.Equal(t, uint64(0), result.Index, "wrong index")
	assert.Equal(t, uint64(1), p.Cursor(), "cursor did not advance")

	ids, err = ledger.FindByAddress(prepared.Address)
	assert.NoError(t, err, "find error")
	assert.Equal(t, 1, len(ids), "records not submitted")
}

func TestBranchPublish(t *testing.T) {
	setup(t)
	defer teardown(t)

	ledger := tangle.NewMemory()
	p, err := publisher.New(testSeed, 1, 1, &publisher.Options{Ledger: ledger})
	assert.NoError(t, err, "publisher error")

	nextRoot := trinary.Trytes(strings.Repeat("N", 81))
	_, err = p.Publish("FORKED", &publisher.PublishOptions{NextRoot: nextRoot})
	assert.NoError(t, err, "publish error")

	branch, security, ok := p.Branch(0)
	assert.True(t, ok, "branch missing")
	assert.Equal(t, nextRoot, branch, "wrong branch root")
	assert.Equal(t, 1, security, "wrong branch security")
}

func TestMirrorRestore(t *testing.T) {
	setup(t)
	defer teardown(t)

	err := store.Initialise(testingDirName + "/mirror.leveldb")
	assert.NoError(t, err, "store error")
	defer store.Finalise()

	ledger := tangle.NewMemory()
	p, err := publisher.New(testSeed, 1, 1, &publisher.Options{
		Ledger: ledger,
		Mirror: true,
	})
	assert.NoError(t, err, "publisher error")

	_, err = p.Publish("DURABLE", nil)
	assert.NoError(t, err, "publish error")

	// a rebuilt publisher resumes where the first one stopped
	restored, err := publisher.New(testSeed, 1, 1, &publisher.Options{
		Ledger: ledger,
		Mirror: true,
	})
	assert.NoError(t, err, "publisher error")
	assert.Equal(t, uint64(1), restored.Cursor(), "cursor not restored")

	message, ok := restored.Message(0)
	assert.True(t, ok, "mirror not restored")
	assert.Equal(t, trinary.Trytes("DURABLE"), message, "wrong restored message")

	_, err = restored.PublishAt(0, "AGAIN", nil)
	assert.Equal(t, fault.ErrIndexUsed, err, "restored index reused")
}

func TestPublishWithoutLedger(t *testing.T) {
	setup(t)
	defer teardown(t)

	p, err := publisher.New(testSeed, 1, 1, nil)
	assert.NoError(t, err, "publisher error")

	_, err = p.Publish("NOWHERE", nil)
	assert.Equal(t, fault.ErrNotInitialised, err, "publish without ledger accepted")
}
