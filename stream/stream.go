// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package stream - the push feed of freshly attached ledger records
package stream

import (
	"github.com/iotaledger/iota.go/transaction"
)

// Client - one upstream connection to a record feed
//
// a client delivers every record the feed publishes; filtering by
// address is the subscriber's concern
type Client interface {

	// Open - connect to the feed
	Open(url string) error

	// Records - arriving records; closed when the client closes
	Records() <-chan *transaction.Transaction

	// Close - disconnect and release the channel
	Close() error
}
