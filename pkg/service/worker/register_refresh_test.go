package worker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
	"github.com/secmon-lab/riskmatrix/pkg/repository/memory"
	"github.com/secmon-lab/riskmatrix/pkg/service/worker"
	"github.com/secmon-lab/riskmatrix/pkg/usecase"
)

var errFetch = goerr.New("connection refused")

type mockFetcher struct {
	mu      sync.Mutex
	risks   []*model.Risk
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (m *mockFetcher) set(risks []*model.Risk, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.risks = risks
	m.err = err
}

func (m *mockFetcher) FetchRisks(ctx context.Context) ([]*model.Risk, error) {
	m.calls.Add(1)
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.risks, nil
}

func newRisk(id int64, likelihood, impact int) *model.Risk {
	score, _ := model.ScoreAndClassify(likelihood, impact)
	return &model.Risk{
		ID:         id,
		Asset:      "asset",
		Threat:     "threat",
		Likelihood: likelihood,
		Impact:     impact,
		Score:      score.Value,
		Level:      score.Level,
	}
}

func TestRegisterRefresher_Refresh(t *testing.T) {
	t.Run("stores snapshot with derived matrix", func(t *testing.T) {
		fetcher := &mockFetcher{}
		fetcher.set([]*model.Risk{newRisk(1, 4, 5), newRisk(2, 4, 5), newRisk(3, 1, 1)}, nil)
		r := worker.NewRegisterRefresher(fetcher)

		gt.Value(t, r.Snapshot()).Nil()

		snapshot, err := r.Refresh(context.Background())
		gt.NoError(t, err).Required()
		gt.Array(t, snapshot.Risks).Length(3)
		gt.Value(t, snapshot.Matrix.Total()).Equal(3)
		gt.Value(t, snapshot.Seq).Equal(uint64(1))

		cell, ok := snapshot.Matrix.Cell(4, 5)
		gt.Bool(t, ok).True()
		gt.Value(t, cell.Count).Equal(2)
		gt.Value(t, r.Snapshot()).Equal(snapshot)
	})

	t.Run("failure keeps previous snapshot", func(t *testing.T) {
		fetcher := &mockFetcher{}
		fetcher.set([]*model.Risk{newRisk(1, 2, 2)}, nil)
		r := worker.NewRegisterRefresher(fetcher)

		first, err := r.Refresh(context.Background())
		gt.NoError(t, err).Required()

		fetcher.set(nil, errFetch)
		_, err = r.Refresh(context.Background())
		gt.Error(t, err).Is(errFetch)
		gt.Value(t, r.Snapshot()).Equal(first)
	})

	t.Run("reject policy surfaces corrupt risk", func(t *testing.T) {
		fetcher := &mockFetcher{}
		fetcher.set([]*model.Risk{{ID: 1, Likelihood: 9, Impact: 1}}, nil)
		r := worker.NewRegisterRefresher(fetcher, worker.WithMatrixPolicy(types.CorruptRiskPolicyReject))

		_, err := r.Refresh(context.Background())
		gt.Error(t, err).Is(model.ErrCorruptRisk)
		gt.Value(t, r.Snapshot()).Nil()
	})

	t.Run("concurrent calls share one fetch", func(t *testing.T) {
		fetcher := &mockFetcher{release: make(chan struct{})}
		fetcher.set([]*model.Risk{newRisk(1, 1, 1)}, nil)
		r := worker.NewRegisterRefresher(fetcher)

		var wg sync.WaitGroup
		results := make([]*worker.Snapshot, 5)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, err := r.Refresh(context.Background())
				gt.NoError(t, err)
				results[i] = s
			}()
		}

		// let every caller join the in-flight fetch before it returns
		time.Sleep(50 * time.Millisecond)
		close(fetcher.release)
		wg.Wait()

		gt.Value(t, fetcher.calls.Load()).Equal(int32(1))
		for _, s := range results {
			gt.Value(t, s).Equal(results[0])
		}
	})
}

func TestRegisterRefresher_LastResponseWins(t *testing.T) {
	r := worker.NewRegisterRefresher(&mockFetcher{})

	newer := &worker.Snapshot{Seq: 2}
	older := &worker.Snapshot{Seq: 1}

	gt.Value(t, worker.StoreSnapshot(r, newer)).Equal(newer)
	gt.Value(t, worker.StoreSnapshot(r, older)).Equal(newer)
	gt.Value(t, r.Snapshot()).Equal(newer)
}

func TestRegisterRefresher_Signal(t *testing.T) {
	repo := memory.New()
	updates := make(chan *worker.Snapshot, 10)

	uc := usecase.New(repo)
	r := worker.NewRegisterRefresher(uc.Risk, worker.WithOnUpdate(func(s *worker.Snapshot) {
		updates <- s
	}))
	uc = usecase.New(repo, usecase.WithListener(r))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gt.NoError(t, r.Start(ctx)).Required()
	defer r.Stop()

	waitUpdate := func(t *testing.T) *worker.Snapshot {
		t.Helper()
		select {
		case s := <-updates:
			return s
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}

	initial := waitUpdate(t)
	gt.Array(t, initial.Risks).Length(0)

	_, err := uc.Risk.AssessRisk(ctx, model.RiskInput{Asset: "DB", Threat: "SQLi", Likelihood: 3, Impact: 3})
	gt.NoError(t, err).Required()

	updated := waitUpdate(t)
	gt.Array(t, updated.Risks).Length(1)
	gt.Value(t, updated.Matrix.Total()).Equal(1)
	gt.Bool(t, updated.Seq > initial.Seq).True()
}

func TestRegisterRefresher_SignalCoalesces(t *testing.T) {
	r := worker.NewRegisterRefresher(&mockFetcher{})
	for range 10 {
		r.Signal()
	}
	// Signal must never block
	r.OnRiskAssessed(context.Background(), nil)
}

func TestRegisterRefresher_StartRequiresFetcher(t *testing.T) {
	r := worker.NewRegisterRefresher(nil)
	gt.Error(t, r.Start(context.Background()))
}

func TestRegisterRefresher_DropsNilRisks(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.set([]*model.Risk{newRisk(1, 2, 2), nil, newRisk(2, 5, 5)}, nil)
	r := worker.NewRegisterRefresher(fetcher)

	snapshot, err := r.Refresh(context.Background())
	gt.NoError(t, err).Required()
	gt.Array(t, snapshot.Risks).Length(2)
	gt.Value(t, snapshot.Risks[1].ID).Equal(int64(2))
	gt.Value(t, snapshot.Matrix.Total()).Equal(2)
}

func TestRegisterRefresher_CancelledCallerDoesNotFailOthers(t *testing.T) {
	fetcher := &mockFetcher{release: make(chan struct{})}
	fetcher.set([]*model.Risk{newRisk(1, 3, 3)}, nil)
	r := worker.NewRegisterRefresher(fetcher)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := r.Refresh(leaderCtx)
		leaderErr <- err
	}()

	for fetcher.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	type result struct {
		snapshot *worker.Snapshot
		err      error
	}
	follower := make(chan result, 1)
	go func() {
		s, err := r.Refresh(context.Background())
		follower <- result{snapshot: s, err: err}
	}()

	// let the follower join the in-flight fetch
	time.Sleep(20 * time.Millisecond)
	cancel()
	gt.Error(t, <-leaderErr).Is(context.Canceled)

	close(fetcher.release)
	got := <-follower
	gt.NoError(t, got.err).Required()
	gt.Array(t, got.snapshot.Risks).Length(1)
	gt.Value(t, fetcher.calls.Load()).Equal(int32(1))
}
