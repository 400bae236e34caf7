package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
	"github.com/secmon-lab/riskmatrix/pkg/utils/logging"
	"golang.org/x/sync/singleflight"
)

// Snapshot is one consistent view of the register: the collection and the matrix derived from it.
type Snapshot struct {
	Risks     []*model.Risk
	Matrix    *model.Matrix
	Seq       uint64
	FetchedAt time.Time
}

// RegisterRefresher keeps the latest register snapshot and refetches it whenever it is signalled.
//
// Signals carry no payload and coalesce: any number of signals raised while a fetch
// is running cause exactly one more fetch. Snapshots are stamped with the sequence
// number of the fetch that produced them and an older snapshot never replaces a newer one.
type RegisterRefresher struct {
	fetcher  interfaces.RiskFetcher
	policy   types.CorruptRiskPolicy
	interval time.Duration
	onUpdate func(*Snapshot)

	group    singleflight.Group
	seq      atomic.Uint64
	mu       sync.RWMutex
	snapshot *Snapshot

	signalCh chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

var _ interfaces.RiskListener = &RegisterRefresher{}

type RefresherOption func(*RegisterRefresher)

// WithInterval adds a periodic refresh in addition to explicit signals
func WithInterval(interval time.Duration) RefresherOption {
	return func(r *RegisterRefresher) {
		r.interval = interval
	}
}

// WithMatrixPolicy selects how corrupt risks are handled when deriving the matrix
func WithMatrixPolicy(policy types.CorruptRiskPolicy) RefresherOption {
	return func(r *RegisterRefresher) {
		if policy.IsValid() {
			r.policy = policy
		}
	}
}

// WithOnUpdate registers a callback invoked from the worker loop after a new snapshot is stored
func WithOnUpdate(fn func(*Snapshot)) RefresherOption {
	return func(r *RegisterRefresher) {
		r.onUpdate = fn
	}
}

// NewRegisterRefresher creates a refresher reading the collection from fetcher
func NewRegisterRefresher(fetcher interfaces.RiskFetcher, opts ...RefresherOption) *RegisterRefresher {
	r := &RegisterRefresher{
		fetcher:  fetcher,
		policy:   types.CorruptRiskPolicyExclude,
		signalCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Signal requests a refresh without blocking
func (r *RegisterRefresher) Signal() {
	select {
	case r.signalCh <- struct{}{}:
	default:
	}
}

// OnRiskAssessed signals a refresh after a new risk was stored
func (r *RegisterRefresher) OnRiskAssessed(ctx context.Context, risk *model.Risk) {
	r.Signal()
}

// Snapshot returns the latest stored snapshot, or nil before the first successful fetch
func (r *RegisterRefresher) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Refresh fetches the collection and stores the derived snapshot. Concurrent calls
// share one fetch. On failure the previous snapshot is kept and the error returned.
// Cancelling ctx only abandons this caller's wait; the shared fetch keeps running.
func (r *RegisterRefresher) Refresh(ctx context.Context) (*Snapshot, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan("refresh", func() (any, error) {
		return r.fetch(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		snapshot := res.Val.(*Snapshot)
		return r.store(snapshot), nil
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "refresh cancelled")
	}
}

func (r *RegisterRefresher) fetch(ctx context.Context) (*Snapshot, error) {
	seq := r.seq.Add(1)

	risks, err := r.fetcher.FetchRisks(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch risks", goerr.V("seq", seq))
	}
	risks = model.Compact(risks)

	matrix, err := model.BuildMatrix(risks, model.WithCorruptRiskPolicy(r.policy))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build matrix", goerr.V("seq", seq))
	}
	if err := matrix.Err(); err != nil {
		logging.From(ctx).Warn("corrupt risks excluded from matrix",
			"count", len(matrix.Excluded),
			"error", err.Error())
	}

	return &Snapshot{
		Risks:     risks,
		Matrix:    matrix,
		Seq:       seq,
		FetchedAt: time.Now(),
	}, nil
}

// store keeps snapshot unless a newer one is already stored, and returns the current snapshot
func (r *RegisterRefresher) store(snapshot *Snapshot) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snapshot != nil && r.snapshot.Seq >= snapshot.Seq {
		return r.snapshot
	}
	r.snapshot = snapshot
	return snapshot
}

// Start begins the background refresh loop. An initial refresh runs immediately.
func (r *RegisterRefresher) Start(ctx context.Context) error {
	if r.fetcher == nil {
		return goerr.New("risk fetcher is required")
	}

	logging.Default().Info("Register refresher starting",
		"interval", r.interval.String())

	r.Signal()
	go r.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (r *RegisterRefresher) Stop() {
	r.stopOnce.Do(func() {
		logging.Default().Info("Register refresher stopping")
		close(r.stopCh)
	})
	<-r.doneCh
}

func (r *RegisterRefresher) run(ctx context.Context) {
	defer close(r.doneCh)

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-r.signalCh:
			r.refreshAndNotify(ctx)

		case <-tick:
			r.refreshAndNotify(ctx)

		case <-r.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("Register refresher context cancelled")
			return
		}
	}
}

func (r *RegisterRefresher) refreshAndNotify(ctx context.Context) {
	prev := r.Snapshot()
	snapshot, err := r.Refresh(ctx)
	if err != nil {
		// previous snapshot stays in place
		logging.From(ctx).Error("Register refresh failed", "error", err.Error())
		return
	}
	if snapshot != prev && r.onUpdate != nil {
		r.onUpdate(snapshot)
	}
}
