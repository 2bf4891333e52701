// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package store - durable mirror of published channels
//
// a publisher records every accepted message and branch root here so a
// restart can resume with warm state; readers may warm their caches
// from the same pools
package store

import (
	"encoding/binary"
	"reflect"
	"sync"

	"github.com/bitmark-inc/logger"
	"github.com/iotaledger/iota.go/trinary"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/cr0ssing/raam.go/fault"
)

// exported storage pools
//
// note all must be exported (i.e. initial capital) or initialisation will panic
type pools struct {
	Messages *PoolHandle `prefix:"M"`
	Branches *PoolHandle `prefix:"B"`
	Cursors  *PoolHandle `prefix:"C"`
}

// Pool - the set of exported pools
var Pool pools

// holds the database handle
var poolData struct {
	sync.RWMutex
	db  *leveldb.DB
	log *logger.L
}

// Initialise - open the database
//
// must be called before any pool is accessed
func Initialise(database string) error {
	poolData.Lock()
	defer poolData.Unlock()

	if nil != poolData.db {
		return fault.ErrAlreadyInitialised
	}

	db, err := leveldb.OpenFile(database, nil)
	if nil != err {
		return err
	}
	poolData.db = db
	poolData.log = logger.New("store")
	poolData.log.Infof("opened: %s", database)

	poolType := reflect.TypeOf(Pool)
	poolValue := reflect.ValueOf(&Pool).Elem()

	for i := 0; i < poolType.NumField(); i += 1 {
		fieldInfo := poolType.Field(i)
		prefixTag := fieldInfo.Tag.Get("prefix")
		if 1 != len(prefixTag) {
			logger.Panicf("pool: %s has invalid prefix: %q", fieldInfo.Name, prefixTag)
		}
		p := &PoolHandle{prefix: prefixTag[0]}
		poolValue.Field(i).Set(reflect.ValueOf(p))
	}

	return nil
}

// Finalise - close the database
func Finalise() {
	poolData.Lock()
	defer poolData.Unlock()

	if nil == poolData.db {
		return
	}
	poolData.db.Close()
	poolData.db = nil
	poolData.log.Info("closed")
}

// IsInitialised - check whether the store is usable
func IsInitialised() bool {
	poolData.RLock()
	defer poolData.RUnlock()
	return nil != poolData.db
}

// PoolHandle - one key prefix in the database
type PoolHandle struct {
	prefix byte
}

// prepend the prefix onto the key
func (p *PoolHandle) prefixKey(key []byte) []byte {
	prefixedKey := make([]byte, 1, len(key)+1)
	prefixedKey[0] = p.prefix
	return append(prefixedKey, key...)
}

// Put - store a key/value pair
func (p *PoolHandle) Put(key []byte, value []byte) {
	poolData.RLock()
	defer poolData.RUnlock()
	if nil == poolData.db {
		logger.Panic("store.Put nil database")
		return
	}
	err := poolData.db.Put(p.prefixKey(key), value, nil)
	logger.PanicIfError("store.Put", err)
}

// Get - read a value; nil if the key is absent
func (p *PoolHandle) Get(key []byte) []byte {
	poolData.RLock()
	defer poolData.RUnlock()
	if nil == poolData.db {
		logger.Panic("store.Get nil database")
		return nil
	}
	value, err := poolData.db.Get(p.prefixKey(key), nil)
	if leveldb.ErrNotFound == err {
		return nil
	}
	logger.PanicIfError("store.Get", err)
	return value
}

// Has - check a key exists
func (p *PoolHandle) Has(key []byte) bool {
	poolData.RLock()
	defer poolData.RUnlock()
	if nil == poolData.db {
		logger.Panic("store.Has nil database")
		return false
	}
	ok, err := poolData.db.Has(p.prefixKey(key), nil)
	logger.PanicIfError("store.Has", err)
	return ok
}

// Delete - remove a key
func (p *PoolHandle) Delete(key []byte) {
	poolData.RLock()
	defer poolData.RUnlock()
	if nil == poolData.db {
		logger.Panic("store.Delete nil database")
		return
	}
	err := poolData.db.Delete(p.prefixKey(key), nil)
	logger.PanicIfError("store.Delete", err)
}

// IndexKey - the pool key of one (root, index) slot
func IndexKey(root trinary.Trytes, index uint64) []byte {
	key := make([]byte, len(root)+8)
	copy(key, root)
	binary.BigEndian.PutUint64(key[len(root):], index)
	return key
}

// RootKey - the pool key of per-channel state
func RootKey(root trinary.Trytes) []byte {
	return []byte(root)
}
