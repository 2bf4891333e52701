// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keyfile - append-only persistence of channel key material
//
// the file holds one JSON record per line: leaves carry the key pair,
// internal nodes carry only their hash; rehydration rebuilds the full
// tree and derives the channel root from the single top node
package keyfile

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/merkle"
)

// one line of the file
type fileRecord struct {
	Public  trinary.Trytes `json:"public,omitempty"`
	Private trinary.Trytes `json:"private,omitempty"`
	Hash    trinary.Trytes `json:"hash,omitempty"`
	Index   uint64         `json:"index"`
	Height  int            `json:"height"`
}

// Writer - appends elements as they are produced
//
// implements merkle.Sink so a tree can be persisted during
// construction
type Writer struct {
	file   *os.File
	buffer *bufio.Writer
}

// NewWriter - open a key file for appending
func NewWriter(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if nil != err {
		return nil, err
	}
	return &Writer{
		file:   file,
		buffer: bufio.NewWriter(file),
	}, nil
}

// Leaf - append one key pair
func (w *Writer) Leaf(l *merkle.Leaf) error {
	return w.append(&fileRecord{
		Public:  trinary.MustTritsToTrytes(l.Public),
		Private: trinary.MustTritsToTrytes(l.Private),
		Index:   l.Index,
		Height:  0,
	})
}

// Node - append one internal hash
func (w *Writer) Node(n *merkle.Node) error {
	return w.append(&fileRecord{
		Hash:   trinary.MustTritsToTrytes(n.Hash),
		Index:  n.Index,
		Height: n.Level,
	})
}

// Close - flush and close the file
func (w *Writer) Close() error {
	err := w.buffer.Flush()
	if nil != err {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *Writer) append(r *fileRecord) error {
	data, err := json.Marshal(r)
	if nil != err {
		return err
	}
	_, err = w.buffer.Write(append(data, '\n'))
	return err
}

// Save - persist a complete tree
func Save(path string, tree *merkle.Tree) error {
	w, err := NewWriter(path)
	if nil != err {
		return err
	}

	for _, leaf := range tree.Leaves() {
		if err := w.Leaf(leaf); nil != err {
			w.Close()
			return err
		}
	}
	for _, node := range tree.Nodes() {
		if err := w.Node(node); nil != err {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// Load - rehydrate a tree from a key file
func Load(path string) (*merkle.Tree, error) {
	file, err := os.Open(path)
	if nil != err {
		return nil, err
	}
	defer file.Close()

	leaves := make([]*merkle.Leaf, 0)
	nodes := make([]*merkle.Node, 0)
	height := 0
	security := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if 0 == len(line) {
			continue
		}

		var r fileRecord
		if err := json.Unmarshal(line, &r); nil != err {
			return nil, fault.ErrWrongKeyfileRecord
		}

		if "" != r.Hash {
			if r.Height < 1 {
				return nil, fault.ErrWrongKeyfileRecord
			}
			hash, err := trinary.TrytesToTrits(r.Hash)
			if nil != err {
				return nil, fault.ErrWrongKeyfileRecord
			}
			nodes = append(nodes, &merkle.Node{
				Hash:  hash,
				Index: r.Index,
				Level: r.Height,
			})
			if r.Height > height {
				height = r.Height
			}
			continue
		}

		if 0 != r.Height || "" == r.Public || "" == r.Private {
			return nil, fault.ErrWrongKeyfileRecord
		}
		public, err := trinary.TrytesToTrits(r.Public)
		if nil != err {
			return nil, fault.ErrWrongKeyfileRecord
		}
		private, err := trinary.TrytesToTrits(r.Private)
		if nil != err {
			return nil, fault.ErrWrongKeyfileRecord
		}
		leaves = append(leaves, &merkle.Leaf{
			Public:  public,
			Private: private,
			Index:   r.Index,
		})
		if 0 == security {
			security = len(public) / consts.HashTrinarySize
		}
	}
	if err := scanner.Err(); nil != err {
		return nil, err
	}

	return merkle.Assemble(height, security, leaves, nodes)
}
