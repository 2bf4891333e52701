// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2021 cr0ssing
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package merkle - the fixed-capacity channel tree
//
// a channel commits to 2^height one-time keys through a single root;
// every leaf key carries an authentication path of height sibling
// hashes back to that root
package merkle

import (
	"time"

	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/curl"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/cr0ssing/raam.go/fault"
	"github.com/cr0ssing/raam.go/ots"
	"github.com/cr0ssing/raam.go/ternary"
)

// tree limits
const (
	MinHeight = 1
	MaxHeight = 26
)

// default throttle for progress callbacks
const defaultProgressInterval = 100 * time.Millisecond

// Leaf - a one-time key pair at level 0
type Leaf struct {
	Public  trinary.Trits
	Private trinary.Trits
	Index   uint64
}

// Node - an internal hash at level 1..height
type Node struct {
	Hash  trinary.Trits
	Index uint64
	Level int
}

// Progress - counts of elements produced since the previous callback
type Progress struct {
	Leaves int
	Nodes  map[int]int // level → count
}

// ProgressFunc - advisory construction progress callback
type ProgressFunc func(p Progress)

// Sink - receives every element as it is produced
//
// used for append-only persistence during construction
type Sink interface {
	Leaf(l *Leaf) error
	Node(n *Node) error
}

// Options - optional construction parameters
type Options struct {
	Offset           uint64        // subseed offset of leaf 0
	Progress         ProgressFunc  // advisory, may be nil
	ProgressInterval time.Duration // zero selects the default
	Sink             Sink          // may be nil
}

// Tree - a fully built channel tree
type Tree struct {
	height   int
	security int
	offset   uint64
	leaves   []*Leaf
	levels   [][]trinary.Trits // levels[l][i]; level 0 is leaf publics
}

// ValidHeight - check a tree height is usable
func ValidHeight(height int) bool {
	return height >= MinHeight && height <= MaxHeight
}

// a pending stack entry during construction
type buildEntry struct {
	level int
	index uint64
	hash  trinary.Trits
}

// NewTree - deterministically build the tree for (seed, height,
// security, offset)
//
// construction is incremental: leaves are pushed onto a stack and two
// sibling entries of equal level are combined as soon as both exist,
// so the stack never holds more than height+1 entries
func NewTree(seed trinary.Trytes, height int, security int, opts *Options) (*Tree, error) {
	if !ValidHeight(height) {
		return nil, fault.ErrInvalidHeight
	}
	if !ots.ValidSecurity(security) {
		return nil, fault.ErrInvalidSecurityLevel
	}
	if nil == opts {
		opts = &Options{}
	}

	interval := opts.ProgressInterval
	if 0 == interval {
		interval = defaultProgressInterval
	}

	capacity := uint64(1) << uint(height)

	tree := &Tree{
		height:   height,
		security: security,
		offset:   opts.Offset,
		leaves:   make([]*Leaf, capacity),
		levels:   make([][]trinary.Trits, height+1),
	}
	for l := 0; l <= height; l += 1 {
		tree.levels[l] = make([]trinary.Trits, capacity>>uint(l))
	}

	progress := Progress{Nodes: make(map[int]int)}
	lastReport := time.Now()

	stack := make([]buildEntry, 0, height+1)

	for i := uint64(0); i < capacity; i += 1 {

		subseed, err := ternary.Subseed(seed, opts.Offset+i)
		if nil != err {
			return nil, err
		}
		private, err := ots.Key(subseed, security)
		if nil != err {
			return nil, err
		}
		public, err := ots.VerifyingKey(private)
		if nil != err {
			return nil, err
		}

		leaf := &Leaf{
			Public:  public,
			Private: private,
			Index:   i,
		}
		tree.leaves[i] = leaf
		tree.levels[0][i] = public
		if nil != opts.Sink {
			if err := opts.Sink.Leaf(leaf); nil != err {
				return nil, err
			}
		}
		progress.Leaves += 1

		stack = append(stack, buildEntry{level: 0, index: i, hash: public})

		// combine completed sibling pairs
		for len(stack) >= 2 && stack[len(stack)-1].level == stack[len(stack)-2].level {
			right := stack[len(stack)-1]
			left := stack[len(stack)-2]
			stack = stack[:len(stack)-2]

			hash, err := combine(left.hash, right.hash, security)
			if nil != err {
				return nil, err
			}

			node := buildEntry{
				level: left.level + 1,
				index: left.index >> 1,
				hash:  hash,
			}
			tree.levels[node.level][node.index] = hash
			if nil != opts.Sink {
				err := opts.Sink.Node(&Node{
					Hash:  hash,
					Index: node.index,
					Level: node.level,
				})
				if nil != err {
					return nil, err
				}
			}
			progress.Nodes[node.level] += 1

			stack = append(stack, node)
		}

		// advisory progress report, at most one per interval
		if nil != opts.Progress && time.Since(lastReport) >= interval {
			opts.Progress(progress)
			progress = Progress{Nodes: make(map[int]int)}
			lastReport = time.Now()
		}
	}

	// the stack reduces to exactly the root
	if 1 != len(stack) || height != stack[0].level {
		return nil, fault.ErrIncompleteTree
	}

	// final report covers the tail
	if nil != opts.Progress && (progress.Leaves > 0 || len(progress.Nodes) > 0) {
		opts.Progress(progress)
	}

	return tree, nil
}

// Assemble - rebuild a tree from persisted leaves and nodes
//
// every leaf and every internal hash must be present
func Assemble(height int, security int, leaves []*Leaf, nodes []*Node) (*Tree, error) {
	if !ValidHeight(height) {
		return nil, fault.ErrInvalidHeight
	}
	if !ots.ValidSecurity(security) {
		return nil, fault.ErrInvalidSecurityLevel
	}

	capacity := uint64(1) << uint(height)

	tree := &Tree{
		height:   height,
		security: security,
		leaves:   make([]*Leaf, capacity),
		levels:   make([][]trinary.Trits, height+1),
	}
	for l := 0; l <= height; l += 1 {
		tree.levels[l] = make([]trinary.Trits, capacity>>uint(l))
	}

	for _, leaf := range leaves {
		if leaf.Index >= capacity {
			return nil, fault.ErrInvalidIndex
		}
		tree.leaves[leaf.Index] = leaf
		tree.levels[0][leaf.Index] = leaf.Public
	}
	for _, node := range nodes {
		if node.Level < 1 || node.Level > height {
			return nil, fault.ErrInvalidHeight
		}
		if node.Index >= capacity>>uint(node.Level) {
			return nil, fault.ErrInvalidIndex
		}
		tree.levels[node.Level][node.Index] = node.Hash
	}

	// verify completeness
	for i := uint64(0); i < capacity; i += 1 {
		if nil == tree.leaves[i] {
			return nil, fault.ErrIncompleteTree
		}
	}
	for l := 1; l <= height; l += 1 {
		for i := range tree.levels[l] {
			if nil == tree.levels[l][i] {
				return nil, fault.ErrIncompleteTree
			}
		}
	}

	return tree, nil
}

// Root - the channel root hash
func (t *Tree) Root() trinary.Trits {
	return t.levels[t.height][0]
}

// RootTrytes - the channel root as trytes
func (t *Tree) RootTrytes() trinary.Trytes {
	return trinary.MustTritsToTrytes(t.Root())
}

// Height - tree height
func (t *Tree) Height() int { return t.height }

// Security - channel security level
func (t *Tree) Security() int { return t.security }

// Capacity - number of leaves
func (t *Tree) Capacity() uint64 { return uint64(1) << uint(t.height) }

// Offset - subseed offset of leaf 0
func (t *Tree) Offset() uint64 { return t.offset }

// Leaf - fetch one key pair
func (t *Tree) Leaf(index uint64) (*Leaf, error) {
	if index >= t.Capacity() {
		return nil, fault.ErrInvalidIndex
	}
	leaf := t.leaves[index]
	if nil == leaf {
		return nil, fault.ErrIncompleteTree
	}
	return leaf, nil
}

// Leaves - all key pairs in index order
func (t *Tree) Leaves() []*Leaf {
	return t.leaves
}

// Nodes - all internal hashes, lowest level first
func (t *Tree) Nodes() []*Node {
	nodes := make([]*Node, 0)
	for l := 1; l <= t.height; l += 1 {
		for i, hash := range t.levels[l] {
			nodes = append(nodes, &Node{
				Hash:  hash,
				Index: uint64(i),
				Level: l,
			})
		}
	}
	return nodes
}

// AuthPath - the sibling hashes authenticating one leaf, leaves first
func (t *Tree) AuthPath(index uint64) ([]trinary.Trits, error) {
	if index >= t.Capacity() {
		return nil, fault.ErrInvalidIndex
	}

	path := make([]trinary.Trits, t.height)
	for l := 0; l < t.height; l += 1 {
		sibling := (index >> uint(l)) ^ 1
		hash := t.levels[l][sibling]
		if nil == hash {
			return nil, fault.ErrIncompleteTree
		}
		path[l] = hash
	}
	return path, nil
}

// RootFromPath - recompute the root committed to by a leaf key and its
// authentication path
func RootFromPath(verifyingKey trinary.Trits, index uint64, path []trinary.Trits, security int) (trinary.Trits, error) {
	if !ots.ValidSecurity(security) {
		return nil, fault.ErrInvalidSecurityLevel
	}

	current := verifyingKey
	for l, sibling := range path {
		var err error
		if 0 == (index>>uint(l))&1 {
			current, err = combine(current, sibling, security)
		} else {
			current, err = combine(sibling, current, security)
		}
		if nil != err {
			return nil, err
		}
	}
	return current, nil
}

// VerifyPath - check that a leaf key belongs to a channel root
func VerifyPath(root trinary.Trits, verifyingKey trinary.Trits, index uint64, path []trinary.Trits, security int) bool {
	computed, err := RootFromPath(verifyingKey, index, path, security)
	if nil != err {
		return false
	}
	if len(root) != len(computed) {
		return false
	}
	for i, t := range computed {
		if t != root[i] {
			return false
		}
	}
	return true
}

// hash two sibling hashes into their parent
func combine(left trinary.Trits, right trinary.Trits, security int) (trinary.Trits, error) {
	c := curl.NewCurl()
	err := c.Absorb(left)
	if nil != err {
		return nil, err
	}
	err = c.Absorb(right)
	if nil != err {
		return nil, err
	}
	return c.Squeeze(security * consts.HashTrinarySize)
}
