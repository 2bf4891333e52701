// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package reader

import (
	"sync"

	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/record"
	"github.com/cr0ssing/raam.go/subscription"
)

// Event - one subscription outcome delivered to the observer
type Event struct {
	Index            uint64
	Message          trinary.Trytes
	NextRoot         trinary.Trytes
	NextRootSecurity int
	Skipped          []Skipped
	ChannelRoot      trinary.Trytes // set on public subscriptions
	Err              error
}

// Observer - receives events as bundles arrive
type Observer func(e *Event)

// SubscribeOptions - which indexes to watch
type SubscribeOptions struct {
	Start           uint64
	End             *uint64        // nil watches only Start
	MessagePassword trinary.Trytes // applied to every index
	Public          bool           // decrypt with the address key
	Following       bool           // chase the next index after each arrival
}

// Watch - a live set of per-index subscriptions
type Watch struct {
	sync.Mutex
	reader    *Reader
	observer  Observer
	opts      SubscribeOptions
	subs      map[uint64]*subscription.Subscription
	cancelled bool
}

// Subscribe - watch cache holes of an index range for live bundles
//
// every arriving bundle is parsed and authenticated exactly like a
// fetched one; with Following set the watch extends to the following
// index after each successful arrival, when that index is inside the
// channel and neither cached nor already watched
func (r *Reader) Subscribe(opts *SubscribeOptions, observer Observer) (*Watch, error) {
	if nil == opts {
		opts = &SubscribeOptions{}
	}

	w := &Watch{
		reader:   r,
		observer: observer,
		opts:     *opts,
		subs:     make(map[uint64]*subscription.Subscription),
	}

	end := opts.Start
	if nil != opts.End {
		end = *opts.End
	}

	for i := opts.Start; i <= end; i += 1 {
		if _, ok := r.cached(i); ok {
			continue
		}
		if err := w.watchIndex(i); nil != err {
			w.Unsubscribe()
			return nil, err
		}
	}

	return w, nil
}

// Unsubscribe - cancel all live per-index subscriptions
//
// idempotent; events already in flight are suppressed
func (w *Watch) Unsubscribe() {
	w.Lock()
	w.cancelled = true
	subs := w.subs
	w.subs = make(map[uint64]*subscription.Subscription)
	w.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// open one single-index subscription
func (w *Watch) watchIndex(index uint64) error {
	r := w.reader

	address, err := record.Address(r.rootTrits, index, r.channelPassword)
	if nil != err {
		return err
	}

	sub, err := r.subscriptionManager().Subscribe(address, func(bundle transaction.Transactions) {
		w.arrived(index, address, bundle)
	})
	if nil != err {
		return err
	}

	w.Lock()
	if w.cancelled {
		w.Unlock()
		sub.Unsubscribe()
		return nil
	}
	w.subs[index] = sub
	w.Unlock()
	return nil
}

// handle one complete bundle for a watched index
func (w *Watch) arrived(index uint64, address trinary.Hash, bundle transaction.Transactions) {
	r := w.reader

	w.Lock()
	if w.cancelled {
		w.Unlock()
		return
	}
	w.Unlock()

	event := &Event{Index: index}

	args := &record.ParseArgs{
		Address:         address,
		Index:           index,
		HasIndex:        true,
		ChannelPassword: r.channelPassword,
		MessagePassword: w.opts.MessagePassword,
	}
	if w.opts.Public {
		args.Public = true
	} else {
		args.Root = r.rootTrits
		args.Height = r.Height()
		args.Security = r.security
	}

	message, err := record.Parse(bundle, args)
	if nil != err {
		// a bad bundle at the address does not finish the watch
		event.Skipped = append(event.Skipped, Skipped{
			Bundle: bundle[0].Bundle,
			Reason: err,
		})
		w.emit(event)
		return
	}

	root := r.rootTrits
	if w.opts.Public {
		recovered, err := record.RecoverRoot(message)
		if nil != err {
			event.Err = err
			w.emit(event)
			return
		}
		root = recovered
		event.ChannelRoot = trinary.MustTritsToTrytes(recovered)
	}

	err = record.Verify(message, root)
	if nil != err {
		event.Err = err
		w.emit(event)
		return
	}

	event.Message = message.Message
	event.NextRoot = message.NextRoot
	event.NextRootSecurity = message.NextRootSecurity

	result := &Result{
		Index:            index,
		Found:            true,
		Message:          message.Message,
		NextRoot:         message.NextRoot,
		NextRootSecurity: message.NextRootSecurity,
		height:           message.Height,
	}
	r.cacheInsert(result)

	// chase the channel before releasing this index so the upstream
	// connection never drops to zero addresses in between
	if w.opts.Following {
		next := index + 1
		capacity := uint64(1) << uint(message.Height)
		_, cachedNext := r.cached(next)
		w.Lock()
		_, watchingNext := w.subs[next]
		w.Unlock()
		if next < capacity && !cachedNext && !watchingNext {
			if err := w.watchIndex(next); nil != err {
				r.log.Errorf("subscribe next index: %d error: %s", next, err)
			}
		}
	}

	// the index is filled, its subscription is done
	w.Lock()
	sub := w.subs[index]
	delete(w.subs, index)
	w.Unlock()
	if nil != sub {
		sub.Unsubscribe()
	}

	w.emit(event)
}

func (w *Watch) emit(event *Event) {
	w.Lock()
	cancelled := w.cancelled
	w.Unlock()
	if cancelled || nil == w.observer {
		return
	}
	w.observer(event)
}
