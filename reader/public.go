// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package reader

import (
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/record"
	"github.com/cr0ssing/raam.go/tangle"
)

// PublicResult - a public-mode message and the channel it proves
type PublicResult struct {
	Result
	ChannelRoot trinary.Trytes
}

// FetchPublic - read a public-mode message knowing only its address
//
// the decryption key of a public message is the address itself; the
// channel root is recomputed from the verifying key and the
// authentication path, so a fresh reader needs no prior knowledge
func FetchPublic(ledger tangle.Ledger, address trinary.Hash) (*PublicResult, error) {

	ids, err := ledger.FindByAddress(address)
	if nil != err {
		return nil, err
	}
	if 0 == len(ids) {
		return &PublicResult{}, nil
	}

	records, err := ledger.GetRecords(ids)
	if nil != err {
		return nil, err
	}

	result := &PublicResult{}

	for _, bundle := range tangle.GroupBundles(records) {
		message, err := record.Parse(bundle, &record.ParseArgs{
			Address: address,
			Public:  true,
		})
		if nil != err {
			result.Skipped = append(result.Skipped, Skipped{
				Bundle: bundle[0].Bundle,
				Reason: err,
			})
			continue
		}

		root, err := record.RecoverRoot(message)
		if nil != err {
			result.Found = true
			result.Err = err
			return result, nil
		}

		result.Found = true
		result.Index = message.Index
		result.height = message.Height
		err = record.Verify(message, root)
		if nil != err {
			result.Err = err
			return result, nil
		}

		result.Message = message.Message
		result.NextRoot = message.NextRoot
		result.NextRootSecurity = message.NextRootSecurity
		result.ChannelRoot = trinary.MustTritsToTrytes(root)
		return result, nil
	}

	return result, nil
}

// FetchPublicMessages - read several public-mode messages
//
// the result maps each address to its outcome; addresses with no
// bundles map to a not-found result
func FetchPublicMessages(ledger tangle.Ledger, addresses []trinary.Hash) (map[trinary.Hash]*PublicResult, error) {
	results := make(map[trinary.Hash]*PublicResult, len(addresses))
	for _, address := range addresses {
		result, err := FetchPublic(ledger, address)
		if nil != err {
			return results, err
		}
		results[address] = result
	}
	return results, nil
}
