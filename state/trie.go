// Package state implements the MPT-on-KV state store of spec.md §4.A:
// a Merkle Patricia Trie with per-service sub-tries, the hash-digested
// StoreMap/StoreArray bucket layout, and the cache/stash/commit write
// discipline.
//
// The trie design follows the classic content-addressed, path-
// compressed radix trie (the shape go-ethereum's trie/trie-sync.go,
// retrieved alongside this spec, schedules node retrieval for): leaf,
// extension, and branch nodes keyed by the Keccak-256 hash of their
// encoding. Unlike go-ethereum's trie, nodes here are encoded with this
// module's own deterministic binary codec rather than RLP, since
// spec.md requires only "a deterministic serializer", not RLP
// specifically.
package state

import (
	"github.com/mutanet/mutacore/codec"
	"github.com/mutanet/mutacore/crypto/hash"
	"github.com/mutanet/mutacore/types"
)

// NodeStore persists trie nodes by their content hash. The persistent
// KV engine behind it is an external collaborator (spec.md §1); this
// module only requires Get/Put.
type NodeStore interface {
	Get(h types.Hash) ([]byte, bool)
	Put(h types.Hash, data []byte)
}

// node is the in-memory representation of a trie node. hashNode is a
// reference to a node that has been persisted but not yet loaded back
// into memory.
type node interface{ isNode() }

type hashNode types.Hash

func (hashNode) isNode() {}

type leafNode struct {
	key []byte // remaining nibbles
	val []byte
}

func (*leafNode) isNode() {}

type extNode struct {
	key   []byte // shared nibbles
	child node
}

func (*extNode) isNode() {}

type branchNode struct {
	children [16]node
	val      []byte // value stored at this branch, if a key terminates here
}

func (*branchNode) isNode() {}

// Trie is a single Merkle Patricia Trie: either the top-level trie
// (keyed by hash(service_name)) or a service's own sub-trie.
type Trie struct {
	store NodeStore
	root  node
}

// NewTrie returns an empty trie.
func NewTrie(store NodeStore) *Trie {
	return &Trie{store: store, root: nil}
}

// OpenTrie resumes a trie from a previously committed root hash.
func OpenTrie(store NodeStore, root types.Hash) *Trie {
	if root.IsEmpty() {
		return NewTrie(store)
	}
	return &Trie{store: store, root: hashNode(root)}
}

func keyToNibbles(key []byte) []byte {
	nibbles := make([]byte, 0, len(key)*2)
	for _, b := range key {
		nibbles = append(nibbles, b>>4, b&0x0F)
	}
	return nibbles
}

func (t *Trie) resolve(n node) node {
	hn, ok := n.(hashNode)
	if !ok {
		return n
	}
	data, ok := t.store.Get(types.Hash(hn))
	if !ok {
		return nil
	}
	decoded, err := decodeNode(data)
	if err != nil {
		return nil
	}
	return decoded
}

// Get looks up key in the trie committed at this Trie's current root.
func (t *Trie) Get(key []byte) ([]byte, bool) {
	return t.get(t.root, keyToNibbles(key))
}

func (t *Trie) get(n node, path []byte) ([]byte, bool) {
	n = t.resolve(n)
	switch nd := n.(type) {
	case nil:
		return nil, false
	case *leafNode:
		if bytesEqual(nd.key, path) {
			return nd.val, true
		}
		return nil, false
	case *extNode:
		if len(path) < len(nd.key) || !bytesEqual(nd.key, path[:len(nd.key)]) {
			return nil, false
		}
		return t.get(nd.child, path[len(nd.key):])
	case *branchNode:
		if len(path) == 0 {
			if nd.val == nil {
				return nil, false
			}
			return nd.val, true
		}
		return t.get(nd.children[path[0]], path[1:])
	default:
		return nil, false
	}
}

// Insert sets key to value, persisting every touched node and
// returning the new root hash. The previous root remains valid and
// queryable via OpenTrie, since no existing node is mutated in place.
func (t *Trie) Insert(key, value []byte) types.Hash {
	t.root = t.insert(t.root, keyToNibbles(key), value)
	return t.Root()
}

func (t *Trie) insert(n node, path []byte, value []byte) node {
	n = t.resolve(n)
	switch nd := n.(type) {
	case nil:
		return &leafNode{key: path, val: value}
	case *leafNode:
		if bytesEqual(nd.key, path) {
			return &leafNode{key: path, val: value}
		}
		return t.mergeLeaves(nd.key, nd.val, path, value)
	case *extNode:
		common := commonPrefixLen(nd.key, path)
		if common == len(nd.key) {
			child := t.insert(nd.child, path[common:], value)
			return &extNode{key: nd.key, child: child}
		}
		return t.splitExtension(nd, common, path, value)
	case *branchNode:
		newBranch := *nd
		if len(path) == 0 {
			newBranch.val = value
			return &newBranch
		}
		newBranch.children[path[0]] = t.insert(nd.children[path[0]], path[1:], value)
		return &newBranch
	default:
		return &leafNode{key: path, val: value}
	}
}

// mergeLeaves builds a branch (with an optional extension above it)
// out of two diverging leaves.
func (t *Trie) mergeLeaves(keyA, valA, keyB, valB []byte) node {
	common := commonPrefixLen(keyA, keyB)
	branch := &branchNode{}
	restA, restB := keyA[common:], keyB[common:]
	if len(restA) == 0 {
		branch.val = valA
	} else {
		branch.children[restA[0]] = &leafNode{key: restA[1:], val: valA}
	}
	if len(restB) == 0 {
		branch.val = valB
	} else {
		branch.children[restB[0]] = &leafNode{key: restB[1:], val: valB}
	}
	var result node = branch
	if common > 0 {
		result = &extNode{key: keyA[:common], child: branch}
	}
	return result
}

func (t *Trie) splitExtension(nd *extNode, common int, path []byte, value []byte) node {
	branch := &branchNode{}
	oldRest := nd.key[common:]
	if len(oldRest) == 1 {
		branch.children[oldRest[0]] = nd.child
	} else {
		branch.children[oldRest[0]] = &extNode{key: oldRest[1:], child: nd.child}
	}
	newRest := path[common:]
	if len(newRest) == 0 {
		branch.val = value
	} else {
		branch.children[newRest[0]] = t.insert(branch.children[newRest[0]], newRest[1:], value)
	}
	var result node = branch
	if common > 0 {
		result = &extNode{key: path[:common], child: branch}
	}
	return result
}

// Remove deletes key, returning the new root hash. A miss is a no-op.
func (t *Trie) Remove(key []byte) types.Hash {
	newRoot, _ := t.remove(t.root, keyToNibbles(key))
	t.root = newRoot
	return t.Root()
}

func (t *Trie) remove(n node, path []byte) (node, bool) {
	n = t.resolve(n)
	switch nd := n.(type) {
	case nil:
		return nil, false
	case *leafNode:
		if bytesEqual(nd.key, path) {
			return nil, true
		}
		return nd, false
	case *extNode:
		if len(path) < len(nd.key) || !bytesEqual(nd.key, path[:len(nd.key)]) {
			return nd, false
		}
		child, ok := t.remove(nd.child, path[len(nd.key):])
		if !ok {
			return nd, false
		}
		if child == nil {
			return nil, true
		}
		return &extNode{key: nd.key, child: child}, true
	case *branchNode:
		newBranch := *nd
		if len(path) == 0 {
			if newBranch.val == nil {
				return nd, false
			}
			newBranch.val = nil
			return &newBranch, true
		}
		child, ok := t.remove(nd.children[path[0]], path[1:])
		if !ok {
			return nd, false
		}
		newBranch.children[path[0]] = child
		return &newBranch, true
	default:
		return n, false
	}
}

// Root computes (and persists any dirty nodes reachable from) the
// current root hash. An untouched trie returns FromEmpty().
func (t *Trie) Root() types.Hash {
	h, _ := t.commit(t.root)
	return h
}

// commit persists n (if not already a hashNode) and every descendant,
// returning the content hash it was stored under.
func (t *Trie) commit(n node) (types.Hash, bool) {
	switch nd := n.(type) {
	case nil:
		return types.FromEmpty(), false
	case hashNode:
		return types.Hash(nd), true
	case *leafNode:
		enc := encodeLeaf(nd)
		h := hash.Sum256(enc)
		t.store.Put(types.Hash(h), enc)
		return types.Hash(h), true
	case *extNode:
		childHash, _ := t.commit(nd.child)
		enc := encodeExt(nd.key, childHash)
		h := hash.Sum256(enc)
		t.store.Put(types.Hash(h), enc)
		return types.Hash(h), true
	case *branchNode:
		var childHashes [16]types.Hash
		for i, c := range nd.children {
			if c == nil {
				childHashes[i] = types.FromEmpty()
				continue
			}
			ch, _ := t.commit(c)
			childHashes[i] = ch
		}
		enc := encodeBranch(childHashes, nd.val)
		h := hash.Sum256(enc)
		t.store.Put(types.Hash(h), enc)
		return types.Hash(h), true
	default:
		return types.FromEmpty(), false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

const (
	tagLeaf   = 1
	tagExt    = 2
	tagBranch = 3
)

func encodeLeaf(nd *leafNode) []byte {
	w := codec.NewWriter()
	w.PutFixed([]byte{tagLeaf})
	w.PutBytes(nd.key)
	w.PutBytes(nd.val)
	return w.Bytes()
}

func encodeExt(key []byte, child types.Hash) []byte {
	w := codec.NewWriter()
	w.PutFixed([]byte{tagExt})
	w.PutBytes(key)
	w.PutFixed(child[:])
	return w.Bytes()
}

func encodeBranch(children [16]types.Hash, val []byte) []byte {
	w := codec.NewWriter()
	w.PutFixed([]byte{tagBranch})
	for _, c := range children {
		w.PutFixed(c[:])
	}
	if val == nil {
		w.PutUint32(0)
	} else {
		w.PutUint32(1)
		w.PutBytes(val)
	}
	return w.Bytes()
}

func decodeNode(data []byte) (node, error) {
	if len(data) == 0 {
		return nil, nil
	}
	tag := data[0]
	r := codec.NewReader(data[1:])
	switch tag {
	case tagLeaf:
		key, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		val, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		return &leafNode{key: key, val: val}, nil
	case tagExt:
		key, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		childHash, err := r.Fixed(types.HashLength)
		if err != nil {
			return nil, err
		}
		var h types.Hash
		copy(h[:], childHash)
		return &extNode{key: key, child: hashNode(h)}, nil
	case tagBranch:
		var br branchNode
		for i := 0; i < 16; i++ {
			ch, err := r.Fixed(types.HashLength)
			if err != nil {
				return nil, err
			}
			var h types.Hash
			copy(h[:], ch)
			if !h.IsEmpty() {
				br.children[i] = hashNode(h)
			}
		}
		hasVal, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		if hasVal == 1 {
			val, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			br.val = val
		}
		return &br, nil
	default:
		return nil, nil
	}
}
