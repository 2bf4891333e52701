// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subscription

import (
	"sync"

	"github.com/iotaledger/iota.go/trinary"
)

// the process-wide manager, created on first use
var globalData struct {
	sync.Mutex
	manager *Manager
}

// Default - the process-wide manager
//
// subscriptions from independent readers share its one connection;
// tests construct their own manager instead
func Default() *Manager {
	globalData.Lock()
	defer globalData.Unlock()

	if nil == globalData.manager {
		globalData.manager = NewManager(nil)
	}
	return globalData.manager
}

// SetServerURL - set the url of the process-wide manager
func SetServerURL(url string) {
	Default().SetServerURL(url)
}

// Subscribe - subscribe on the process-wide manager
func Subscribe(address trinary.Hash, callback Callback) (*Subscription, error) {
	return Default().Subscribe(address, callback)
}
