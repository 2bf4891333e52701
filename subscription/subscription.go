// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package subscription - multiplexer over one push-stream connection
//
// many per-address subscribers share a single upstream feed; records
// are buffered per bundle until the bundle is complete, then the whole
// bundle is dispatched to every subscriber of its address
package subscription

import (
	"sync"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"
	gocache "github.com/patrickmn/go-cache"

	"github.com/cr0ssing/raam.go/background"
	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/stream"
)

// partially assembled bundles expire if the feed never completes them
const (
	pendingBundleLifetime = 10 * time.Minute
	pendingSweepInterval  = 30 * time.Second
)

// Callback - receives one complete bundle ordered by currentIndex
type Callback func(bundle transaction.Transactions)

// a registered callback
type subscriber struct {
	id       uint64
	callback Callback
}

// a partially assembled bundle
type assembly struct {
	sync.Mutex
	records map[uint64]*transaction.Transaction
}

// Manager - the connection and subscriber tables
type Manager struct {
	sync.Mutex
	log        *logger.L
	client     stream.Client
	url        string
	subs       map[trinary.Hash][]subscriber
	pending    *gocache.Cache
	background *background.T
	connected  bool
	nextID     uint64
}

// NewManager - create a manager over a specific feed client
//
// a nil client selects a zmq client when the first subscription opens
// the connection; tests inject a loopback instead
func NewManager(client stream.Client) *Manager {
	return &Manager{
		log:     logger.New("subscription"),
		client:  client,
		subs:    make(map[trinary.Hash][]subscriber),
		pending: gocache.New(pendingBundleLifetime, pendingSweepInterval),
	}
}

// SetServerURL - target of the upstream connection
func (m *Manager) SetServerURL(url string) {
	m.Lock()
	defer m.Unlock()
	m.url = url
}

// Subscription - one subscriber registration
type Subscription struct {
	sync.Mutex
	manager   *Manager
	address   trinary.Hash
	id        uint64
	cancelled bool
}

// Subscribe - register a callback for bundles arriving at an address
//
// opens the upstream connection on first use; fails when no server
// url has been set
func (m *Manager) Subscribe(address trinary.Hash, callback Callback) (*Subscription, error) {
	m.Lock()

	if !m.connected {
		if "" == m.url {
			m.Unlock()
			return nil, fault.ErrURLNotSet
		}
		if nil == m.client {
			m.client = stream.NewZMQ()
		}
		err := m.client.Open(m.url)
		if nil != err {
			m.Unlock()
			return nil, err
		}
		m.connected = true
		m.background = background.Start(background.Processes{m}, nil)
		m.log.Infof("connected: %s", m.url)
	}

	m.nextID += 1
	id := m.nextID
	m.subs[address] = append(m.subs[address], subscriber{
		id:       id,
		callback: callback,
	})
	m.log.Debugf("subscribe: %s id: %d", address, id)
	m.Unlock()

	return &Subscription{
		manager: m,
		address: address,
		id:      id,
	}, nil
}

// Unsubscribe - remove this registration
//
// idempotent; dropping the last address closes the connection
func (s *Subscription) Unsubscribe() {
	s.Lock()
	if s.cancelled {
		s.Unlock()
		return
	}
	s.cancelled = true
	s.Unlock()

	s.manager.unsubscribe(s.address, s.id)
}

func (m *Manager) unsubscribe(address trinary.Hash, id uint64) {
	m.Lock()

	list := m.subs[address]
	for i, sub := range list {
		if id == sub.id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if 0 == len(list) {
		delete(m.subs, address)
	} else {
		m.subs[address] = list
	}

	var client stream.Client
	var bg *background.T
	if 0 == len(m.subs) && m.connected {
		client = m.client
		bg = m.background
		m.connected = false
		m.background = nil
	}
	m.Unlock()

	// teardown runs detached: the final unsubscribe may arrive from
	// inside the dispatch loop itself, which Stop must wait for
	if nil != client {
		go func() {
			client.Close()
			bg.Stop()
			m.log.Info("disconnected")
		}()
	}
}

// Run - the dispatch loop
func (m *Manager) Run(args interface{}, shutdown <-chan struct{}) {

	m.Lock()
	records := m.client.Records()
	m.Unlock()

loop:
	for {
		select {
		case <-shutdown:
			break loop

		case record, ok := <-records:
			if !ok {
				break loop
			}
			m.handle(record)
		}
	}
}

// buffer one record; dispatch its bundle when complete
func (m *Manager) handle(record *transaction.Transaction) {

	m.Lock()
	if _, ok := m.subs[record.Address]; !ok {
		m.Unlock()
		return
	}
	m.Unlock()

	key := string(record.Address) + "/" + string(record.Bundle)

	var pending *assembly
	if cached, ok := m.pending.Get(key); ok {
		pending = cached.(*assembly)
	} else {
		pending = &assembly{
			records: make(map[uint64]*transaction.Transaction),
		}
		m.pending.Set(key, pending, gocache.DefaultExpiration)
	}

	pending.Lock()
	pending.records[record.CurrentIndex] = record
	complete := uint64(len(pending.records)) == record.LastIndex+1
	var bundle transaction.Transactions
	if complete {
		bundle = make(transaction.Transactions, 0, len(pending.records))
		for i := uint64(0); i <= record.LastIndex; i += 1 {
			r, ok := pending.records[i]
			if !ok {
				complete = false
				break
			}
			bundle = append(bundle, *r)
		}
	}
	pending.Unlock()

	if !complete {
		return
	}
	m.pending.Delete(key)

	m.Lock()
	subs := make([]subscriber, len(m.subs[record.Address]))
	copy(subs, m.subs[record.Address])
	m.Unlock()

	m.log.Debugf("dispatch bundle: %s records: %d subscribers: %d", record.Bundle, len(bundle), len(subs))

	// callbacks fire in feed delivery order for an address
	for _, sub := range subs {
		sub.callback(bundle)
	}
}
