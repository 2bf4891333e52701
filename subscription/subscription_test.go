// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subscription_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"
	"github.com/stretchr/testify/assert"

	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/stream"
	"github.com/cr0ssing/raam.go/subscription"
	"github.com/cr0ssing/raam.go/ternary"
)

const testingDirName = "testing"

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

func makeBundle(address trinary.Hash, id trinary.Hash, count int) transaction.Transactions {
	records := make(transaction.Transactions, count)
	for i := 0; i < count; i += 1 {
		records[i] = transaction.Transaction{
			Address:                  address,
			Bundle:                   id,
			CurrentIndex:             uint64(i),
			LastIndex:                uint64(count - 1),
			SignatureMessageFragment: trinary.Trytes(strings.Repeat("M", ternary.FragmentTrytesSize)),
		}
	}
	return records
}

func TestSubscribeRequiresURL(t *testing.T) {
	setup(t)
	defer teardown(t)

	manager := subscription.NewManager(stream.NewLoopback())

	_, err := manager.Subscribe(trinary.Hash(strings.Repeat("A", 81)), func(bundle transaction.Transactions) {})
	assert.Equal(t, fault.ErrURLNotSet, err, "missing url accepted")
}

func TestDispatch(t *testing.T) {
	setup(t)
	defer teardown(t)

	feed := stream.NewLoopback()
	manager := subscription.NewManager(feed)
	manager.SetServerURL("loopback")

	address := trinary.Hash(strings.Repeat("B", 81))
	other := trinary.Hash(strings.Repeat("C", 81))

	received := make(chan transaction.Transactions, 10)
	sub, err := manager.Subscribe(address, func(bundle transaction.Transactions) {
		received <- bundle
	})
	assert.NoError(t, err, "subscribe error")
	defer sub.Unsubscribe()

	// records of a watched address, delivered out of order
	bundle := makeBundle(address, trinary.Hash(strings.Repeat("I", 81)), 3)
	feed.Deliver(transaction.Transactions{bundle[2]})
	feed.Deliver(transaction.Transactions{bundle[0]})

	// an unrelated address is ignored
	feed.Deliver(makeBundle(other, trinary.Hash(strings.Repeat("J", 81)), 1))

	select {
	case <-received:
		t.Fatal("incomplete bundle dispatched")
	case <-time.After(100 * time.Millisecond):
	}

	feed.Deliver(transaction.Transactions{bundle[1]})

	select {
	case got := <-received:
		assert.Equal(t, 3, len(got), "wrong bundle size")
		for i := range got {
			assert.Equal(t, uint64(i), got[i].CurrentIndex, "records not ordered")
		}
	case <-time.After(time.Second):
		t.Fatal("bundle not dispatched")
	}
}

func TestMultipleSubscribers(t *testing.T) {
	setup(t)
	defer teardown(t)

	feed := stream.NewLoopback()
	manager := subscription.NewManager(feed)
	manager.SetServerURL("loopback")

	address := trinary.Hash(strings.Repeat("D", 81))

	first := make(chan transaction.Transactions, 1)
	second := make(chan transaction.Transactions, 1)

	subOne, err := manager.Subscribe(address, func(bundle transaction.Transactions) {
		first <- bundle
	})
	assert.NoError(t, err, "subscribe error")
	subTwo, err := manager.Subscribe(address, func(bundle transaction.Transactions) {
		second <- bundle
	})
	assert.NoError(t, err, "subscribe error")

	feed.Deliver(makeBundle(address, trinary.Hash(strings.Repeat("K", 81)), 2))

	for i, ch := range []chan transaction.Transactions{first, second} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d starved", i)
		}
	}

	subOne.Unsubscribe()
	subTwo.Unsubscribe()
}

func TestUnsubscribeIdempotent(t *testing.T) {
	setup(t)
	defer teardown(t)

	feed := stream.NewLoopback()
	manager := subscription.NewManager(feed)
	manager.SetServerURL("loopback")

	address := trinary.Hash(strings.Repeat("E", 81))
	sub, err := manager.Subscribe(address, func(bundle transaction.Transactions) {})
	assert.NoError(t, err, "subscribe error")

	sub.Unsubscribe()
	sub.Unsubscribe()

	// the connection is released once the last address drops
	time.Sleep(100 * time.Millisecond)
	err = feed.Close()
	assert.Equal(t, fault.ErrNotConnected, err, "feed still open")
}
