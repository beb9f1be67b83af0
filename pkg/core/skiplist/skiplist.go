// Package skiplist implements the ordered index behind every secondary
// index of a store: a probabilistic skip list mapping each key to the
// bucket of records that share it.
//
// An Index is not safe for concurrent use. The owning store serialises
// structural changes and holds its read lock while a scan is consumed.
package skiplist

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

const (
	// MaxLevel bounds the number of forward links of a node. With P = 0.5
	// it keeps the expected search path logarithmic up to 2^16 keys and
	// degrades gracefully beyond that.
	MaxLevel = 16
	// P is the probability of promoting a node one more level.
	P = 0.5
)

// ErrDuplicateKey is returned by Insert on a unique index whose bucket for
// the key is already populated. The index is left untouched.
var ErrDuplicateKey = errors.New("duplicate key")

type node[K any, R comparable] struct {
	key     K
	bucket  []R
	forward []*node[K, R]
}

func newNode[K any, R comparable](key K, rec R, level int) *node[K, R] {
	return &node[K, R]{
		key:     key,
		bucket:  []R{rec},
		forward: make([]*node[K, R], level+1),
	}
}

// Index is an ordered multimap from K to records of type R.
type Index[K any, R comparable] struct {
	head *node[K, R]
	// tail is the node holding the largest key; tailLevels[i] is the last
	// node linked at level i, nil when that level is empty.
	tail       *node[K, R]
	tailLevels [MaxLevel + 1]*node[K, R]
	level      int
	maxLevel   int
	p          float64
	rnd        *rand.Rand
	compare    func(a, b K) int
	unique     bool
	keys       int
	records    int
}

// Option customises an Index.
type Option func(*options)

type options struct {
	unique   bool
	maxLevel int
	p        float64
	src      rand.Source
}

// WithUnique makes a second record for an existing key an error.
func WithUnique() Option {
	return func(o *options) { o.unique = true }
}

// WithMaxLevel caps node height. Values outside [1, MaxLevel] are clamped.
func WithMaxLevel(n int) Option {
	return func(o *options) { o.maxLevel = min(max(n, 1), MaxLevel) }
}

// WithProbability sets the promotion probability; values outside (0, 1)
// are ignored.
func WithProbability(p float64) Option {
	return func(o *options) {
		if p > 0 && p < 1 {
			o.p = p
		}
	}
}

// WithSeed makes level generation reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15) }
}

// New creates an index over a naturally ordered key type.
func New[K cmp.Ordered, R comparable](opts ...Option) *Index[K, R] {
	return NewFunc[K, R](cmp.Compare[K], opts...)
}

// NewFunc creates an index ordered by compare, for keys such as time.Time
// that are not cmp.Ordered. compare must be a total order.
func NewFunc[K any, R comparable](compare func(a, b K) int, opts ...Option) *Index[K, R] {
	o := options{maxLevel: MaxLevel, p: P}
	for _, opt := range opts {
		opt(&o)
	}
	if o.src == nil {
		o.src = rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())
	}
	return &Index[K, R]{
		head:     &node[K, R]{forward: make([]*node[K, R], o.maxLevel+1)},
		maxLevel: o.maxLevel,
		p:        o.p,
		rnd:      rand.New(o.src),
		compare:  compare,
		unique:   o.unique,
	}
}

// Unique reports whether the index rejects duplicate keys.
func (l *Index[K, R]) Unique() bool { return l.unique }

// Len returns the number of records across all buckets.
func (l *Index[K, R]) Len() int { return l.records }

// KeyCount returns the number of distinct keys.
func (l *Index[K, R]) KeyCount() int { return l.keys }

// Level returns the highest level currently in use.
func (l *Index[K, R]) Level() int { return l.level }

// Compare orders two keys the way the index does.
func (l *Index[K, R]) Compare(a, b K) int { return l.compare(a, b) }

func (l *Index[K, R]) randomLevel() int {
	lvl := 0
	for lvl < l.maxLevel && l.rnd.Float64() < l.p {
		lvl++
	}
	return lvl
}

// descend walks from the head towards key. When update is non-nil it
// records, per level, the last node whose key is below key. The returned
// node is the first one at level 0 whose key is >= key, or nil.
func (l *Index[K, R]) descend(key K, update *[MaxLevel + 1]*node[K, R]) *node[K, R] {
	x := l.head
	for i := l.level; i >= 0; i-- {
		for x.forward[i] != nil && l.compare(x.forward[i].key, key) < 0 {
			x = x.forward[i]
		}
		if update != nil {
			update[i] = x
		}
	}
	return x.forward[0]
}

func (l *Index[K, R]) findNode(key K) *node[K, R] {
	x := l.descend(key, nil)
	if x != nil && l.compare(x.key, key) == 0 {
		return x
	}
	return nil
}

// Insert adds rec under key.
//
// Keys above the current maximum take the append path, which links the new
// node from the per-level tails without searching. Monotonic surrogate
// keys therefore insert in O(1) expected time.
func (l *Index[K, R]) Insert(key K, rec R) error {
	if l.tail == nil || l.compare(key, l.tail.key) > 0 {
		l.appendTail(key, rec)
		return nil
	}

	var update [MaxLevel + 1]*node[K, R]
	x := l.descend(key, &update)
	if x != nil && l.compare(x.key, key) == 0 {
		if l.unique {
			return fmt.Errorf("%w: %v", ErrDuplicateKey, key)
		}
		x.bucket = append(x.bucket, rec)
		l.records++
		return nil
	}

	lvl := l.randomLevel()
	if lvl > l.level {
		for i := l.level + 1; i <= lvl; i++ {
			update[i] = l.head
		}
		l.level = lvl
	}
	n := newNode(key, rec, lvl)
	for i := 0; i <= lvl; i++ {
		n.forward[i] = update[i].forward[i]
		update[i].forward[i] = n
		if n.forward[i] == nil {
			l.tailLevels[i] = n
		}
	}
	if n.forward[0] == nil {
		l.tail = n
	}
	l.keys++
	l.records++
	return nil
}

func (l *Index[K, R]) appendTail(key K, rec R) {
	lvl := l.randomLevel()
	n := newNode(key, rec, lvl)
	for i := 0; i <= lvl; i++ {
		if prev := l.tailLevels[i]; prev != nil {
			prev.forward[i] = n
		} else {
			l.head.forward[i] = n
		}
		l.tailLevels[i] = n
	}
	if lvl > l.level {
		l.level = lvl
	}
	l.tail = n
	l.keys++
	l.records++
}

// Search reports whether key has a bucket.
func (l *Index[K, R]) Search(key K) bool {
	return l.findNode(key) != nil
}

// Conflicts reports whether inserting key would fail with ErrDuplicateKey.
func (l *Index[K, R]) Conflicts(key K) bool {
	return l.unique && l.findNode(key) != nil
}

// Find returns a copy of the bucket stored under key, in insertion order.
func (l *Index[K, R]) Find(key K) ([]R, bool) {
	x := l.findNode(key)
	if x == nil {
		return nil, false
	}
	return slices.Clone(x.bucket), true
}

// Delete removes key together with its whole bucket. It reports whether
// the key was present.
func (l *Index[K, R]) Delete(key K) bool {
	var update [MaxLevel + 1]*node[K, R]
	x := l.descend(key, &update)
	if x == nil || l.compare(x.key, key) != 0 {
		return false
	}
	l.unlink(x, &update)
	return true
}

// Remove drops a single record from the bucket under key. The key itself
// is deleted once its bucket is empty.
func (l *Index[K, R]) Remove(key K, rec R) bool {
	var update [MaxLevel + 1]*node[K, R]
	x := l.descend(key, &update)
	if x == nil || l.compare(x.key, key) != 0 {
		return false
	}
	i := slices.Index(x.bucket, rec)
	if i < 0 {
		return false
	}
	if len(x.bucket) == 1 {
		l.unlink(x, &update)
		return true
	}
	x.bucket = slices.Delete(x.bucket, i, i+1)
	l.records--
	return true
}

func (l *Index[K, R]) unlink(x *node[K, R], update *[MaxLevel + 1]*node[K, R]) {
	for i := range x.forward {
		if update[i].forward[i] != x {
			break
		}
		update[i].forward[i] = x.forward[i]
		if l.tailLevels[i] == x {
			if update[i] == l.head {
				l.tailLevels[i] = nil
			} else {
				l.tailLevels[i] = update[i]
			}
		}
	}
	if l.tail == x {
		if update[0] == l.head {
			l.tail = nil
		} else {
			l.tail = update[0]
		}
	}
	for l.level > 0 && l.head.forward[l.level] == nil {
		l.level--
	}
	l.keys--
	l.records -= len(x.bucket)
}

// Min returns the smallest key.
func (l *Index[K, R]) Min() (K, bool) {
	if first := l.head.forward[0]; first != nil {
		return first.key, true
	}
	var zero K
	return zero, false
}

// Max returns the largest key.
func (l *Index[K, R]) Max() (K, bool) {
	if l.tail != nil {
		return l.tail.key, true
	}
	var zero K
	return zero, false
}
