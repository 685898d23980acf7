package manager

import (
	"strconv"
	"weak"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/arborix-db/pmtree/shared"
	"github.com/arborix-db/pmtree/store"
)

// DefaultCacheCapacity is used when a non-positive capacity is given to
// New, mirroring Carmen's node cache defaulting behavior.
const DefaultCacheCapacity = 1024

// Manager is the Node Manager: it owns a Node Store and a bounded LRU
// cache of nodes loaded from it, and mediates every read, take-or-clone,
// and save a tree performs against its Node References.
type Manager[N any] struct {
	store   store.Store[N]
	cache   *lru.Cache
	loading singleflight.Group
	metrics *Metrics
	log     *logrus.Entry
}

// New creates a Node Manager backed by the given Store, with an LRU cache
// of the given capacity. A non-positive capacity falls back to
// DefaultCacheCapacity.
func New[N any](backing store.Store[N], cacheCapacity int) *Manager[N] {
	if cacheCapacity <= 0 {
		cacheCapacity = DefaultCacheCapacity
	}
	cache, err := lru.New(cacheCapacity)
	if err != nil {
		// lru.New only fails for a non-positive size, already guarded
		// against above.
		panic(errors.Wrap(err, "manager: failed to construct node cache"))
	}
	return &Manager[N]{
		store: backing,
		cache: cache,
		log:   logrus.WithField("component", "node-manager"),
	}
}

// WithMetrics attaches Prometheus instrumentation to the Manager and
// returns the receiver for chaining.
func (m *Manager[N]) WithMetrics(metrics *Metrics) *Manager[N] {
	m.metrics = metrics
	return m
}

// Store returns the Node Store backing this manager, for callers that need
// to issue direct store operations such as DecRefCount/Delete.
func (m *Manager[N]) Store() store.Store[N] {
	return m.store
}

// Read resolves ref to a read handle on its node. It returns
// found=false for an Empty reference.
func (m *Manager[N]) Read(ref Reference[N]) (handle shared.ReadHandle[N], found bool, err error) {
	sharedNode, found, err := m.resolve(ref)
	if err != nil || !found {
		return shared.ReadHandle[N]{}, found, err
	}
	handle, err = sharedNode.GetReadHandle()
	return handle, true, err
}

// resolve returns the *shared.Shared[N] backing ref, loading it from the
// weak cache, the LRU cache, or the Node Store as needed.
func (m *Manager[N]) resolve(ref Reference[N]) (*shared.Shared[N], bool, error) {
	if ref.IsEmpty() {
		return nil, false, nil
	}
	c := ref.cell

	c.mu.RLock()
	if c.state.resident != nil {
		node := c.state.resident
		c.mu.RUnlock()
		return node, true, nil
	}
	ptr := c.state.storedPtr
	w := c.state.storedWeak
	c.mu.RUnlock()

	if live := w.Value(); live != nil {
		m.metrics.weakHit()
		m.metrics.hit()
		return live, true, nil
	}

	if cached, ok := m.cache.Get(ptr); ok {
		node := cached.(*shared.Shared[N])
		m.metrics.hit()
		m.refreshWeak(c, ptr, node)
		return node, true, nil
	}
	m.metrics.miss()

	loaded, err, _ := m.loading.Do(strconv.FormatUint(uint64(ptr), 10), func() (interface{}, error) {
		raw, err := m.store.Read(ptr)
		if err != nil {
			return nil, err
		}
		return shared.New(raw), nil
	})
	if err != nil {
		m.log.WithError(err).WithField("ptr", ptr).Warn("failed to load node from store")
		return nil, false, errors.Wrapf(err, "manager: loading ptr=%s", ptr)
	}
	node := loaded.(*shared.Shared[N])
	m.metrics.storeLoad()
	m.log.WithField("ptr", ptr).Debug("loaded node from store")

	if evicted := m.cache.Add(ptr, node); evicted {
		m.metrics.evict()
	}
	m.refreshWeak(c, ptr, node)
	return node, true, nil
}

// refreshWeak attempts a non-blocking upgrade of c to refresh its weak
// cache; a failed upgrade is silently ignored rather than blocking the
// caller.
func (m *Manager[N]) refreshWeak(c *cell[N], ptr store.Ptr, node *shared.Shared[N]) {
	if !c.mu.TryLock() {
		return
	}
	defer c.mu.Unlock()
	if c.state.resident == nil && c.state.hasStored && c.state.storedPtr == ptr {
		c.state.storedWeak = weak.Make(node)
	}
}

// HashHandle resolves ref to a hash handle on its node: read access to
// content, exclusive write access to the node's memoized digest slot.
// Used by the AVL tree's Merkle hashing.
func (m *Manager[N]) HashHandle(ref Reference[N]) (handle shared.HashHandle[N], found bool, err error) {
	sharedNode, found, err := m.resolve(ref)
	if err != nil || !found {
		return shared.HashHandle[N]{}, found, err
	}
	handle, err = sharedNode.GetHashHandle()
	return handle, true, err
}

// TakeResult is the outcome of a TakeOrClone call: either Empty is true,
// or Node is a usable node and Owned reports whether the caller may
// mutate it in place.
type TakeResult[N any] struct {
	Empty bool
	Node  N
	Owned bool
}

// TakeOrClone is the pivot between persistent and transient trees. When
// editable is false, or the reference's cell is shared, the result is
// always a fresh clone the caller may freely
// mutate without affecting any other tree version. When editable is true
// and the cell is uniquely held, the cell is consumed: a Resident node is
// handed to the caller itself (Owned=true), while a Stored node is
// returned as a clone (Owned=false) and stays in the store unchanged.
func (m *Manager[N]) TakeOrClone(ref Reference[N], editable bool, clone func(N) N) (TakeResult[N], error) {
	if ref.IsEmpty() {
		return TakeResult[N]{Empty: true}, nil
	}
	c := ref.cell

	if !editable {
		node, _, err := m.resolve(ref)
		if err != nil {
			return TakeResult[N]{}, err
		}
		rh, err := node.GetReadHandle()
		if err != nil {
			return TakeResult[N]{}, err
		}
		defer rh.Release()
		m.metrics.cloned()
		return TakeResult[N]{Node: clone(rh.Get()), Owned: false}, nil
	}

	if c.refs.Load() == 1 {
		c.mu.Lock()
		if c.state.resident != nil {
			resident := c.state.resident
			c.state.resident = nil
			c.mu.Unlock()
			c.refs.Add(-1)

			wh, err := resident.GetWriteHandle()
			if err != nil {
				return TakeResult[N]{}, err
			}
			node := wh.Ref()
			result := *node
			wh.Release()
			m.metrics.owned()
			return TakeResult[N]{Node: result, Owned: true}, nil
		}
		// Stored with a unique holder: the cell is consumed, but the
		// persisted node is unaffected; the caller only gets a clone.
		c.mu.Unlock()
		c.refs.Add(-1)
		node, _, err := m.resolve(ref)
		if err != nil {
			return TakeResult[N]{}, err
		}
		rh, err := node.GetReadHandle()
		if err != nil {
			return TakeResult[N]{}, err
		}
		defer rh.Release()
		m.metrics.cloned()
		return TakeResult[N]{Node: clone(rh.Get()), Owned: false}, nil
	}

	// Shared cell: behaves like editable=false.
	node, _, err := m.resolve(ref)
	if err != nil {
		return TakeResult[N]{}, err
	}
	rh, err := node.GetReadHandle()
	if err != nil {
		return TakeResult[N]{}, err
	}
	defer rh.Release()
	m.metrics.cloned()
	return TakeResult[N]{Node: clone(rh.Get()), Owned: false}, nil
}

// Save persists a single node. It does not recurse: callers are
// responsible for saving children bottom-up before saving their own
// reference.
func (m *Manager[N]) Save(ref Reference[N]) (store.Ptr, bool, error) {
	if ref.IsEmpty() {
		return 0, false, nil
	}
	c := ref.cell

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.resident != nil {
		resident := c.state.resident
		rh, err := resident.GetReadHandle()
		if err != nil {
			return 0, false, err
		}
		value := rh.Get()
		rh.Release()

		ptr, err := m.store.Insert(value)
		if err != nil {
			return 0, false, err
		}
		// Populate the weak cache immediately with the just-persisted
		// node's in-memory copy, avoiding an avoidable reload on the
		// next read.
		c.state = cellState[N]{hasStored: true, storedPtr: ptr, storedWeak: weak.Make(resident)}
		if evicted := m.cache.Add(ptr, resident); evicted {
			m.metrics.evict()
		}
		return ptr, true, nil
	}

	if _, err := m.store.IncRefCount(c.state.storedPtr); err != nil {
		return 0, false, err
	}
	return c.state.storedPtr, true, nil
}
