// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tangle

import (
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/iotaledger/iota.go/api"
	"github.com/iotaledger/iota.go/bundle"
	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/ternary"
)

// tag attached to records that were assembled without one
const clientTag = "RAAM99999999999999999999999"

// Client - ledger access through a node's HTTP API
type Client struct {
	log *logger.L
	api *api.API
}

// NewClient - connect to a node
func NewClient(url string) (*Client, error) {
	a, err := api.ComposeAPI(api.HTTPClientSettings{URI: url})
	if nil != err {
		return nil, err
	}
	return &Client{
		log: logger.New("tangle"),
		api: a,
	}, nil
}

// FindByAddress - bundle ids at an address in discovery order
func (c *Client) FindByAddress(address trinary.Hash) ([]trinary.Hash, error) {
	txs, err := c.api.FindTransactionObjects(api.FindTransactionsQuery{
		Addresses: trinary.Hashes{address},
	})
	if nil != err {
		c.log.Errorf("find by address: %s error: %s", address, err)
		return nil, err
	}

	seen := make(map[trinary.Hash]struct{})
	ids := make([]trinary.Hash, 0)
	for i := range txs {
		if _, ok := seen[txs[i].Bundle]; !ok {
			seen[txs[i].Bundle] = struct{}{}
			ids = append(ids, txs[i].Bundle)
		}
	}
	c.log.Debugf("address: %s bundles: %d", address, len(ids))
	return ids, nil
}

// GetRecords - all records of the given bundles
func (c *Client) GetRecords(bundles []trinary.Hash) (transaction.Transactions, error) {
	if 0 == len(bundles) {
		return nil, nil
	}
	txs, err := c.api.FindTransactionObjects(api.FindTransactionsQuery{
		Bundles: bundles,
	})
	if nil != err {
		c.log.Errorf("get records error: %s", err)
		return nil, err
	}
	return txs, nil
}

// Submit - bundle the records and attach them to the ledger
func (c *Client) Submit(records transaction.Transactions, depth uint64, mwm uint64) (transaction.Transactions, error) {
	if 0 == depth {
		depth = DefaultDepth
	}
	if 0 == mwm {
		mwm = DefaultMWM
	}

	fragments := make([]trinary.Trytes, len(records))
	for i := range records {
		fragments[i] = ternary.PadTrytes(records[i].SignatureMessageFragment, ternary.FragmentTrytesSize)
	}

	// the bundle keeps the tag its records were assembled with
	tag := records[0].Tag
	if "" == tag {
		tag = clientTag
	}

	entry := bundle.BundleEntry{
		Length:                    uint64(len(records)),
		Address:                   records[0].Address,
		Value:                     0,
		Tag:                       ternary.PadTrytes(tag, len(clientTag)),
		Timestamp:                 uint64(time.Now().Unix()),
		SignatureMessageFragments: fragments,
	}

	finalized, err := bundle.Finalize(bundle.AddEntry(transaction.Transactions{}, entry))
	if nil != err {
		c.log.Errorf("finalize error: %s", err)
		return nil, err
	}

	trytes := make([]trinary.Trytes, len(finalized))
	for i := range finalized {
		t, err := transaction.TransactionToTrytes(&finalized[i])
		if nil != err {
			return nil, err
		}
		trytes[i] = t
	}

	attached, err := c.api.SendTrytes(trytes, depth, mwm)
	if nil != err {
		c.log.Errorf("send trytes error: %s", err)
		return nil, err
	}

	result := transaction.Transactions(attached)
	c.log.Infof("attached bundle: %s records: %d", result[0].Bundle, len(result))
	return result, nil
}
