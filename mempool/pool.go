// Package mempool implements spec.md §4.C: concurrent tx admission,
// deduplication, packaging for a proposal, flush on commit, and
// pull-sync of hashes unknown locally. The deferred-length-
// reconciliation behavior (queueLen) is supplemented from
// original_source/core/mempool/src/tests/mempool.rs, which pins down
// the on-disk source's actual flush/package interaction as runtime
// behavior rather than a test-only curiosity.
package mempool

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mutanet/mutacore/crypto/secp256k1"
	"github.com/mutanet/mutacore/log"
	"github.com/mutanet/mutacore/metrics"
	"github.com/mutanet/mutacore/types"
)

// KnownSource distinguishes a locally submitted tx from one learned
// through gossip or pull-sync, per spec.md §3's mempool tx record.
type KnownSource int

const (
	SourceLocal KnownSource = iota
	SourceBroadcast
)

// Checker answers the storage-existence check of spec.md §4.C step 4.
type Checker interface {
	HasTransaction(hash types.Hash) bool
}

// Sender issues the pull_txs RPC of spec.md §6 against a
// consensus-tagged peer; EnsureOrderTxs and SyncProposeTxs use it to
// fetch hashes missing from the local pool.
type Sender interface {
	PullTxs(ctx context.Context, hashes []types.Hash) ([]types.SignedTransaction, error)
}

// Config bounds a Pool's capacity and the admission windows spec.md
// §4.C's structural checks enforce.
type Config struct {
	ChainID     types.Hash
	PoolSize    int
	MaxTxSize   int
	TimeoutGap  uint64
	PullRetries int
	// SigWorkers bounds the dedicated worker pool InsertBatch uses for
	// concurrent signature verification, per spec.md §5 "A dedicated
	// thread pool is used for CPU-bound signature verification." Zero
	// defaults to runtime.GOMAXPROCS(0).
	SigWorkers int
}

// MixedTxHashes is the packaging result of spec.md §4.C: txs to
// execute (order) and txs merely advertised (propose), in insertion
// order.
type MixedTxHashes struct {
	OrderTxHashes   []types.Hash
	ProposeTxHashes []types.Hash
}

type record struct {
	tx             types.SignedTransaction
	insertionOrder uint64
	source         KnownSource
}

// Pool is the concurrent admission/packaging structure spec.md §5
// calls for: "designed for parallel inserts and one concurrent
// packager."
type Pool struct {
	cfg     Config
	storage Checker
	sender  Sender
	logger  log.Logger
	metrics *metrics.NodeMetrics

	mu      sync.RWMutex
	records map[types.Hash]*record

	seq    uint64 // atomic; spec.md §5 "mempool's sequence counter is atomic"
	height uint64 // atomic; current height gate for the timeout window

	sf singleflight.Group

	// pendingRemoved counts hashes Flush has already evicted from
	// records but that a Package call has not yet folded into queueLen,
	// per original_source/core/mempool/src/tests/mempool.rs: "queue_len()
	// only drops at the next Package call."
	pendingRemoved int32
}

// New builds a Pool. storage answers the admission pipeline's
// already-committed check; sender issues pull-sync RPCs; logger and m
// may be nil in tests.
func New(cfg Config, storage Checker, sender Sender, logger log.Logger, m *metrics.NodeMetrics) *Pool {
	if cfg.SigWorkers <= 0 {
		cfg.SigWorkers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		cfg:     cfg,
		storage: storage,
		sender:  sender,
		logger:  logger,
		metrics: m,
		records: make(map[types.Hash]*record),
	}
}

// SetHeight updates the height admission checks are measured against;
// the Consensus Adapter calls this once per commit.
func (p *Pool) SetHeight(height uint64) {
	atomic.StoreUint64(&p.height, height)
}

func (p *Pool) currentHeight() uint64 {
	return atomic.LoadUint64(&p.height)
}

// Len reports the number of records currently held.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.records)
}

// queueLen is the capacity-admission count spec.md §4.C's PoolFull
// check reads: the live record count plus every hash Flush has
// already removed but Package hasn't yet reconciled.
func (p *Pool) queueLen() int {
	return p.Len() + int(atomic.LoadInt32(&p.pendingRemoved))
}

// Insert runs the five-step admission pipeline of spec.md §4.C for a
// single tx.
func (p *Pool) Insert(tx types.SignedTransaction, source KnownSource) error {
	// Step 1: structural checks.
	if tx.Raw.ChainID != p.cfg.ChainID {
		return &RejectError{Reason: ReasonWrongChainID, Hash: tx.TxHash}
	}
	encoded, err := tx.EncodeFixed()
	if err != nil {
		return &RejectError{Reason: ReasonBadHash, Hash: tx.TxHash}
	}
	if p.cfg.MaxTxSize > 0 && len(encoded) > p.cfg.MaxTxSize {
		return &RejectError{Reason: ReasonTxTooLarge, Hash: tx.TxHash}
	}
	height := p.currentHeight()
	if !(height < tx.Raw.Timeout && tx.Raw.Timeout <= height+p.cfg.TimeoutGap) {
		return &RejectError{Reason: ReasonTimeout, Hash: tx.TxHash}
	}

	// Step 2: recompute and compare tx_hash.
	rawBytes, err := tx.Raw.EncodeFixed()
	if err != nil || types.Keccak256(rawBytes) != tx.TxHash {
		return &RejectError{Reason: ReasonBadHash, Hash: tx.TxHash}
	}

	// Step 3: signature check against the sender-derived address.
	if err := secp256k1.Verify(tx.PubKey, tx.TxHash, tx.Signature); err != nil {
		return &RejectError{Reason: ReasonBadSig, Hash: tx.TxHash}
	}
	if types.AddressFromPubKey(tx.PubKey) != tx.Raw.Sender {
		return &RejectError{Reason: ReasonBadSig, Hash: tx.TxHash}
	}

	// Step 4: storage existence check.
	if p.storage != nil && p.storage.HasTransaction(tx.TxHash) {
		return &RejectError{Reason: ReasonAlreadyCommitted, Hash: tx.TxHash}
	}

	// Step 5: pool insertion under a per-hash single-writer guard.
	_, err, _ = p.sf.Do(tx.TxHash.String(), func() (interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, exists := p.records[tx.TxHash]; exists {
			return nil, &RejectError{Reason: ReasonDuplicate, Hash: tx.TxHash}
		}
		if len(p.records)+int(atomic.LoadInt32(&p.pendingRemoved)) >= p.cfg.PoolSize {
			return nil, &RejectError{Reason: ReasonPoolFull, Hash: tx.TxHash}
		}
		order := atomic.AddUint64(&p.seq, 1)
		p.records[tx.TxHash] = &record{tx: tx, insertionOrder: order, source: source}
		return nil, nil
	})
	if err != nil {
		if p.metrics != nil {
			p.metrics.TxRejected.Inc()
		}
		return err
	}
	if p.metrics != nil {
		p.metrics.TxAdmitted.Inc()
	}
	return nil
}

// InsertBatch admits txs concurrently on a bounded worker pool (spec.md
// §5's dedicated thread pool for CPU-bound signature verification) and
// returns one error per input tx, in input order.
func (p *Pool) InsertBatch(ctx context.Context, txs []types.SignedTransaction, source KnownSource) []error {
	errs := make([]error, len(txs))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.SigWorkers)
	for i, tx := range txs {
		i, tx := i, tx
		g.Go(func() error {
			errs[i] = p.Insert(tx, source)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Package implements spec.md §4.C's non-destructive packaging:
// order_tx_hashes whose cumulative declared cycles fit cyclesLimit and
// whose count is at most txNumLimit, then propose_tx_hashes for
// overflow up to 2*cyclesLimit. Both orderings follow insertion order.
// Packaging is the single point at which pendingRemoved (hashes an
// earlier Flush evicted) is folded into queueLen's bookkeeping.
func (p *Pool) Package(cyclesLimit uint64, txNumLimit int) MixedTxHashes {
	p.mu.RLock()
	ordered := make([]*record, 0, len(p.records))
	for _, r := range p.records {
		ordered = append(ordered, r)
	}
	p.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].insertionOrder < ordered[j].insertionOrder
	})

	atomic.StoreInt32(&p.pendingRemoved, 0)

	var out MixedTxHashes
	var orderCycles, proposeCycles uint64
	for _, r := range ordered {
		cost := r.tx.Raw.CyclesLimit
		switch {
		case len(out.OrderTxHashes) < txNumLimit && orderCycles+cost <= cyclesLimit:
			out.OrderTxHashes = append(out.OrderTxHashes, r.tx.TxHash)
			orderCycles += cost
		case proposeCycles+cost <= 2*cyclesLimit:
			out.ProposeTxHashes = append(out.ProposeTxHashes, r.tx.TxHash)
			proposeCycles += cost
		}
	}
	return out
}

// GetFullTxs resolves hashes to their full signed transactions from
// the pool alone. Any hash not present is reported via MsgsLostError
// rather than silently dropped, since a caller assembling a block from
// its own just-packaged hashes should never see a miss.
func (p *Pool) GetFullTxs(hashes []types.Hash) ([]types.SignedTransaction, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.SignedTransaction, 0, len(hashes))
	var missing []types.Hash
	for _, h := range hashes {
		r, ok := p.records[h]
		if !ok {
			missing = append(missing, h)
			continue
		}
		out = append(out, r.tx)
	}
	if len(missing) > 0 {
		return nil, &MsgsLostError{Hashes: missing}
	}
	return out, nil
}

// Flush removes hashes from the pool immediately; queueLen only
// reflects the removal starting at the next Package call, per
// original_source/core/mempool/src/tests/mempool.rs.
func (p *Pool) Flush(hashes []types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		if _, ok := p.records[h]; ok {
			delete(p.records, h)
			atomic.AddInt32(&p.pendingRemoved, 1)
		}
	}
}

// Prune evicts every record whose timeout has elapsed at the given
// height (timeout <= height), matching spec.md §4.C "hashes ... age
// out because timeout <= new current_height."
func (p *Pool) Prune(height uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for h, r := range p.records {
		if r.tx.Raw.Timeout <= height {
			delete(p.records, h)
		}
	}
}

func (p *Pool) missing(hashes []types.Hash) []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []types.Hash
	for _, h := range hashes {
		if _, ok := p.records[h]; !ok {
			out = append(out, h)
		}
	}
	return out
}

// EnsureOrderTxs resolves hashes against the local pool, pulling any
// still missing from peers via Sender and re-admitting them, per
// spec.md §4.C pull-sync.
func (p *Pool) EnsureOrderTxs(ctx context.Context, hashes []types.Hash) error {
	return p.ensure(ctx, hashes, SourceBroadcast)
}

// SyncProposeTxs is EnsureOrderTxs's counterpart for a Pill's
// advertised-but-not-executed propose hashes.
func (p *Pool) SyncProposeTxs(ctx context.Context, hashes []types.Hash) error {
	return p.ensure(ctx, hashes, SourceBroadcast)
}

func (p *Pool) ensure(ctx context.Context, hashes []types.Hash, source KnownSource) error {
	remaining := p.missing(hashes)
	for attempt := 0; len(remaining) > 0 && attempt < p.cfg.PullRetries; attempt++ {
		fetched, err := p.sender.PullTxs(ctx, remaining)
		if err != nil {
			if p.logger != nil {
				p.logger.Warn("mempool: pull_txs rpc failed", zap.Int("attempt", attempt), zap.Error(err))
			}
			continue
		}
		for _, tx := range fetched {
			if err := p.Insert(tx, source); err != nil {
				if p.logger != nil {
					p.logger.Warn("mempool: rejected a pulled tx", zap.Error(err))
				}
			}
		}
		remaining = p.missing(hashes)
	}
	if len(remaining) > 0 {
		return &MsgsLostError{Hashes: remaining}
	}
	return nil
}
