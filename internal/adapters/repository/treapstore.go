package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: stored-at DESC, then boss ASC (deterministic). "less" means
// listed earlier, so an in-order walk yields the recency listing.

// treap node
type node struct {
	boss  string
	stamp int64 // stored-at, unix nanoseconds
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aStamp int64, aBoss string, bStamp int64, bBoss string) bool {
	if aStamp != bStamp {
		return aStamp > bStamp
	}
	return aBoss < bBoss
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// priority hashes the key so the tree shape depends only on the stored set.
func priority(boss string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(boss))
	return h.Sum64()
}

func insert(n *node, boss string, stamp int64) *node {
	if n == nil {
		return &node{boss: boss, stamp: stamp, prio: priority(boss), size: 1}
	}
	if less(stamp, boss, n.stamp, n.boss) {
		n.left = insert(n.left, boss, stamp)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, boss, stamp)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, boss string, stamp int64) *node {
	if n == nil {
		return nil
	}
	switch {
	case stamp == n.stamp && boss == n.boss:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, boss, stamp)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, boss, stamp)
		}
	case less(stamp, boss, n.stamp, n.boss):
		n.left = deleteNode(n.left, boss, stamp)
	default:
		n.right = deleteNode(n.right, boss, stamp)
	}
	fix(n)
	return n
}

// collectRecent appends up to limit summaries in listing order.
func collectRecent(n *node, limit int, byBoss map[string]Timeline, out *[]Summary) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectRecent(n.left, limit, byBoss, out)
	if len(*out) < limit {
		if t, ok := byBoss[n.boss]; ok {
			*out = append(*out, summarize(&t, len(*out)+1))
		}
	}
	if len(*out) < limit {
		collectRecent(n.right, limit, byBoss, out)
	}
}

func summarize(t *Timeline, rank int) Summary {
	return Summary{
		Rank:     rank,
		Boss:     t.Boss,
		RunID:    t.RunID,
		StoredAt: t.StoredAt,
		Actions:  len(t.Actions),
		Degraded: t.Diagnostics.Degraded(),
	}
}

// Snapshot is an immutable view published after every write.
type Snapshot struct {
	Bosses []string  // ascending
	Recent []Summary // most recent first, capped at the cache size
}

// TreapStore implements Store.
type TreapStore struct {
	mu     sync.RWMutex
	root   *node
	byBoss map[string]Timeline

	recentCacheSize       int
	metricsUpdateInterval time.Duration
	now                   func() time.Time

	snapshot atomic.Pointer[Snapshot]

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		byBoss:                make(map[string]Timeline),
		recentCacheSize:       100,
		metricsUpdateInterval: 5 * time.Second,
		now:                   time.Now,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.snapshot.Store(&Snapshot{})
	metrics.UpdateTimelinesStored(0)
	s.startMetricsUpdater(ctx)

	return s
}

// Close stops the background metrics goroutine.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Put implements Store.Put in O(log n) expected time.
func (s *TreapStore) Put(_ context.Context, t Timeline) error { //nolint:gocritic // hugeParam: stored by value
	if t.Boss == "" {
		metrics.RecordErrorByComponent("repository", "invalid_boss")
		return ErrInvalidBoss
	}
	if t.StoredAt.IsZero() {
		t.StoredAt = s.now()
	}
	t.Actions = append([]model.AggregatedAction(nil), t.Actions...)

	s.mu.Lock()
	if old, ok := s.byBoss[t.Boss]; ok {
		s.root = deleteNode(s.root, old.Boss, old.StoredAt.UnixNano())
	}
	s.byBoss[t.Boss] = t
	s.root = insert(s.root, t.Boss, t.StoredAt.UnixNano())
	s.publishSnapshotLocked()
	count := len(s.byBoss)
	s.mu.Unlock()

	metrics.UpdateTimelinesStored(count)
	return nil
}

// Get returns a copy of the stored timeline for boss.
func (s *TreapStore) Get(_ context.Context, boss string) (Timeline, error) {
	s.mu.RLock()
	t, ok := s.byBoss[boss]
	s.mu.RUnlock()

	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Timeline{}, ErrNotFound
	}
	t.Actions = append([]model.AggregatedAction(nil), t.Actions...)
	return t, nil
}

// Recent returns up to n summaries, most recent first. Requests within the
// snapshot cache are served without locking.
func (s *TreapStore) Recent(_ context.Context, n int) ([]Summary, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	if snap := s.snapshot.Load(); n <= s.recentCacheSize || len(snap.Recent) < s.recentCacheSize {
		if n > len(snap.Recent) {
			n = len(snap.Recent)
		}
		return append([]Summary(nil), snap.Recent[:n]...), nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, min(n, len(s.byBoss)))
	collectRecent(s.root, n, s.byBoss, &out)
	return out, nil
}

// Bosses returns the stored boss ids in ascending order.
func (s *TreapStore) Bosses(_ context.Context) []string {
	return append([]string(nil), s.snapshot.Load().Bosses...)
}

// Count returns the number of stored timelines.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byBoss)
}

// publishSnapshotLocked rebuilds the read snapshot; s.mu must be held.
func (s *TreapStore) publishSnapshotLocked() {
	bosses := make([]string, 0, len(s.byBoss))
	for b := range s.byBoss {
		bosses = append(bosses, b)
	}
	sort.Strings(bosses)

	recent := make([]Summary, 0, min(s.recentCacheSize, len(s.byBoss)))
	collectRecent(s.root, s.recentCacheSize, s.byBoss, &recent)

	s.snapshot.Store(&Snapshot{Bosses: bosses, Recent: recent})
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateTimelinesStored(s.Count(ctx))
			}
		}
	}()
}
