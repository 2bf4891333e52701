// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stream

import (
	"strings"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"
	zmq "github.com/pebbe/zmq4"

	"github.com/cr0ssing/raam.go/background"
	"github.com/cr0ssing/raam.go/fault"
)

// the node feed topic carrying raw record trytes
const trytesTopic = "tx_trytes"

// poll granularity so shutdown is noticed promptly
const receiveTimeout = 500 * time.Millisecond

// buffered so a slow consumer does not stall the socket loop
const recordQueueSize = 1000

// ZMQ - a subscriber on a node's zmq record feed
type ZMQ struct {
	sync.Mutex
	log        *logger.L
	socket     *zmq.Socket
	records    chan *transaction.Transaction
	background *background.T
}

// NewZMQ - create an unconnected feed client
func NewZMQ() *ZMQ {
	return &ZMQ{
		log: logger.New("stream"),
	}
}

// Open - connect the SUB socket and start the receive loop
func (z *ZMQ) Open(url string) error {
	z.Lock()
	defer z.Unlock()

	if nil != z.socket {
		return fault.ErrAlreadyInitialised
	}

	socket, err := zmq.NewSocket(zmq.SUB)
	if nil != err {
		return err
	}

	err = socket.SetLinger(0)
	if nil != err {
		goto failure
	}
	err = socket.SetRcvtimeo(receiveTimeout)
	if nil != err {
		goto failure
	}
	err = socket.SetSubscribe(trytesTopic)
	if nil != err {
		goto failure
	}
	err = socket.Connect(url)
	if nil != err {
		goto failure
	}

	z.log.Infof("connected to: %s", url)

	z.socket = socket
	z.records = make(chan *transaction.Transaction, recordQueueSize)
	z.background = background.Start(background.Processes{z}, nil)
	return nil

failure:
	socket.Close()
	return err
}

// Records - arriving records
func (z *ZMQ) Records() <-chan *transaction.Transaction {
	z.Lock()
	defer z.Unlock()
	return z.records
}

// Close - stop the loop and drop the connection
func (z *ZMQ) Close() error {
	z.Lock()
	socket := z.socket
	bg := z.background
	z.socket = nil
	z.background = nil
	z.Unlock()

	if nil == socket {
		return fault.ErrNotConnected
	}

	bg.Stop()
	err := socket.Close()

	// the closed channel stays readable so consumers see the close
	z.Lock()
	close(z.records)
	z.Unlock()

	z.log.Info("closed")
	return err
}

// Run - the receive loop
func (z *ZMQ) Run(args interface{}, shutdown <-chan struct{}) {

loop:
	for {
		select {
		case <-shutdown:
			break loop
		default:
		}

		z.Lock()
		socket := z.socket
		records := z.records
		z.Unlock()
		if nil == socket {
			break loop
		}

		message, err := socket.Recv(0)
		if nil != err {
			// timeout just re-checks shutdown
			continue loop
		}

		record := parseFeedMessage(message)
		if nil == record {
			continue loop
		}

		select {
		case records <- record:
		default:
			z.log.Warn("record queue overflow")
		}
	}
}

// a feed line is: topic, record trytes, record hash
func parseFeedMessage(message string) *transaction.Transaction {
	parts := strings.Fields(message)
	if len(parts) < 3 || trytesTopic != parts[0] {
		return nil
	}
	record, err := transaction.AsTransactionObject(trinary.Trytes(parts[1]), trinary.Hash(parts[2]))
	if nil != err {
		return nil
	}
	return record
}
