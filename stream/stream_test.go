// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stream_test

import (
	"strings"
	"testing"

	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"
	"github.com/stretchr/testify/assert"

	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/stream"
)

func TestLoopback(t *testing.T) {
	feed := stream.NewLoopback()

	// closed feeds reject closing again and drop deliveries
	err := feed.Close()
	assert.Equal(t, fault.ErrNotConnected, err, "close of closed feed accepted")

	assert.NoError(t, feed.Open("anywhere"), "open error")
	err = feed.Open("anywhere")
	assert.Equal(t, fault.ErrAlreadyInitialised, err, "double open accepted")

	record := transaction.Transaction{
		Address: trinary.Hash(strings.Repeat("A", 81)),
		Bundle:  trinary.Hash(strings.Repeat("B", 81)),
	}
	feed.Deliver(transaction.Transactions{record})

	select {
	case got := <-feed.Records():
		assert.Equal(t, record.Address, got.Address, "wrong record")
	default:
		t.Fatal("record not delivered")
	}

	assert.NoError(t, feed.Close(), "close error")

	// the channel is closed for readers
	_, ok := <-feed.Records()
	assert.False(t, ok, "channel still open")
}
