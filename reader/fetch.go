// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package reader

import (
	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/record"
	"github.com/cr0ssing/raam.go/tangle"
)

// Skipped - a bundle at the right address that did not parse
type Skipped struct {
	Bundle trinary.Hash
	Reason error
}

// Result - the outcome for one index
//
// Err carries a per-index verification or authentication failure; it
// never poisons other indexes
type Result struct {
	Index            uint64
	Found            bool
	Message          trinary.Trytes
	NextRoot         trinary.Trytes
	NextRootSecurity int
	Skipped          []Skipped
	Err              error

	height int
}

// FetchQuery - which indexes to fetch
//
// a nil End probes forward until the first index with no bundle
type FetchQuery struct {
	Index           *uint64        // exactly one index
	Start           uint64         // ignored when Index is set
	End             *uint64        // inclusive; nil probes
	MessagePassword trinary.Trytes // applied to every fetched index
}

// Fetch - retrieve, authenticate and cache a range of messages
//
// cached indexes are returned without ledger access; holes are walked
// in order, so results arrive index-ascending
func (r *Reader) Fetch(query *FetchQuery) ([]*Result, error) {
	if nil == r.ledger {
		return nil, fault.ErrNotInitialised
	}
	if nil == query {
		query = &FetchQuery{}
	}

	start := query.Start
	probe := nil == query.End
	end := uint64(0)
	if nil != query.Index {
		start = *query.Index
		end = *query.Index
		probe = false
	} else if !probe {
		end = *query.End
	}

	results := make([]*Result, 0)
	for i := start; probe || i <= end; i += 1 {

		if cached, ok := r.cached(i); ok {
			results = append(results, cached)
			continue
		}

		result, err := fetchIndex(r.ledger, r.rootTrits, i, &FetchOptions{
			Height:          r.Height(),
			Security:        r.security,
			ChannelPassword: r.channelPassword,
			MessagePassword: query.MessagePassword,
		})
		if nil != err {
			return results, err
		}

		if !result.Found {
			if probe {
				break
			}
			results = append(results, result)
			continue
		}

		if nil == result.Err {
			r.cacheInsert(result)
		} else {
			r.log.Warnf("index: %d error: %s", i, result.Err)
		}
		results = append(results, result)
	}

	return results, nil
}

// Sync - fetch forward until the first hole
//
// afterwards the cursor is the first index with no message
func (r *Reader) Sync() ([]*Result, error) {
	return r.Fetch(&FetchQuery{})
}

// FetchOptions - expectations for stateless fetching
type FetchOptions struct {
	Height          int
	Security        int
	ChannelPassword trinary.Trytes
	MessagePassword trinary.Trytes
}

// FetchSingle - fetch one index of a channel without reader state
func FetchSingle(ledger tangle.Ledger, root trinary.Trytes, index uint64, opts *FetchOptions) (*Result, error) {
	rootTrits, err := trinary.TrytesToTrits(root)
	if nil != err {
		return nil, fault.ErrInvalidMessage
	}
	effective := FetchOptions{}
	if nil != opts {
		effective = *opts
	}
	if 0 == effective.Security {
		effective.Security = len(rootTrits) / consts.HashTrinarySize
	}
	return fetchIndex(ledger, rootTrits, index, &effective)
}

// FetchMessages - fetch a range of a channel without reader state
func FetchMessages(ledger tangle.Ledger, root trinary.Trytes, start uint64, end *uint64, opts *FetchOptions) ([]*Result, error) {
	results := make([]*Result, 0)

	for i := start; ; i += 1 {
		if nil != end && i > *end {
			break
		}
		result, err := FetchSingle(ledger, root, i, opts)
		if nil != err {
			return results, err
		}
		if !result.Found {
			if nil == end {
				break
			}
			results = append(results, result)
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

// retrieve one index: find bundles at the derived address, try them
// oldest first, authenticate the first that parses
func fetchIndex(ledger tangle.Ledger, rootTrits trinary.Trits, index uint64, opts *FetchOptions) (*Result, error) {

	address, err := record.Address(rootTrits, index, opts.ChannelPassword)
	if nil != err {
		return nil, err
	}

	ids, err := ledger.FindByAddress(address)
	if nil != err {
		return nil, err
	}
	if 0 == len(ids) {
		return &Result{Index: index}, nil
	}

	records, err := ledger.GetRecords(ids)
	if nil != err {
		return nil, err
	}

	result := &Result{Index: index}

	for _, bundle := range tangle.GroupBundles(records) {
		message, err := record.Parse(bundle, &record.ParseArgs{
			Address:         address,
			Root:            rootTrits,
			Index:           index,
			HasIndex:        true,
			Height:          opts.Height,
			Security:        opts.Security,
			ChannelPassword: opts.ChannelPassword,
			MessagePassword: opts.MessagePassword,
		})
		if nil != err {
			result.Skipped = append(result.Skipped, Skipped{
				Bundle: bundle[0].Bundle,
				Reason: err,
			})
			continue
		}

		// the first bundle that parses wins; a verification failure
		// is this index's final outcome
		result.Found = true
		result.height = message.Height
		err = record.Verify(message, rootTrits)
		if nil != err {
			result.Err = err
			return result, nil
		}

		result.Message = message.Message
		result.NextRoot = message.NextRoot
		result.NextRootSecurity = message.NextRootSecurity
		return result, nil
	}

	// bundles exist but none parsed
	return result, nil
}
