package ue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"tarun-kavipurapu/rrc-dialogue/pkg/logger"
	"tarun-kavipurapu/rrc-dialogue/pkg/rrc"
)

// AttachState is where a single attach of a batch currently is.
type AttachState int

const (
	AttachPending AttachState = iota
	AttachRunning
	AttachAccepted
	AttachRejected
	AttachFailed
)

func (s AttachState) String() string {
	switch s {
	case AttachPending:
		return "pending"
	case AttachRunning:
		return "running"
	case AttachAccepted:
		return "accepted"
	case AttachRejected:
		return "rejected"
	case AttachFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Icon returns an icon representation of the attach state
func (s AttachState) Icon() string {
	switch s {
	case AttachPending:
		return "⏳"
	case AttachRunning:
		return "→"
	case AttachAccepted:
		return "✓"
	case AttachRejected:
		return "!"
	case AttachFailed:
		return "✗"
	default:
		return "?"
	}
}

// AttachResult is the outcome of one attach in a batch.
type AttachResult struct {
	Index         int
	State         AttachState
	TransactionID uint8
	Err           error
	Elapsed       time.Duration
}

// BatchTracker tracks a batch of attaches against one eNB.
type BatchTracker struct {
	mu        sync.RWMutex
	Addr      string
	Total     int
	results   []AttachResult
	running   int
	StartTime time.Time
	EndTime   time.Time
}

func NewBatchTracker(addr string, total int) *BatchTracker {
	results := make([]AttachResult, total)
	for i := range results {
		results[i].Index = i
	}
	return &BatchTracker{
		Addr:      addr,
		Total:     total,
		results:   results,
		StartTime: time.Now(),
	}
}

func (bt *BatchTracker) markRunning(i int) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.results[i].State = AttachRunning
	bt.running++
}

func (bt *BatchTracker) markDone(r AttachResult) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.results[r.Index] = r
	bt.running--
	if bt.doneLocked() == bt.Total {
		bt.EndTime = time.Now()
	}
}

func (bt *BatchTracker) doneLocked() int {
	n := 0
	for _, r := range bt.results {
		if r.State >= AttachAccepted {
			n++
		}
	}
	return n
}

// Counts returns accepted, rejected, failed and in-flight attaches.
func (bt *BatchTracker) Counts() (accepted, rejected, failed, running int) {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	for _, r := range bt.results {
		switch r.State {
		case AttachAccepted:
			accepted++
		case AttachRejected:
			rejected++
		case AttachFailed:
			failed++
		}
	}
	return accepted, rejected, failed, bt.running
}

// IsComplete reports whether every attach reached a final state.
func (bt *BatchTracker) IsComplete() bool {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return bt.doneLocked() == bt.Total
}

// Results returns a copy of per-attach results in index order.
func (bt *BatchTracker) Results() []AttachResult {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	out := make([]AttachResult, len(bt.results))
	copy(out, bt.results)
	return out
}

func (bt *BatchTracker) GetElapsedTime() time.Duration {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	if !bt.EndTime.IsZero() {
		return bt.EndTime.Sub(bt.StartTime)
	}
	return time.Since(bt.StartTime)
}

// AttachBatch runs count attaches against addr with at most parallel in
// flight. Individual failures are recorded in the tracker, not returned.
func (u *UE) AttachBatch(ctx context.Context, addr string, count, parallel int, tracker *BatchTracker) *BatchTracker {
	if tracker == nil {
		tracker = NewBatchTracker(addr, count)
	}
	if parallel < 1 {
		parallel = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, parallel)
	for i := 0; i < tracker.Total; i++ {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			tracker.markRunning(i)
			tracker.markDone(AttachResult{Index: i, State: AttachFailed, Err: ctx.Err()})
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			tracker.markRunning(i)
			start := time.Now()
			setup, err := u.Attach(ctx, addr)
			res := AttachResult{Index: i, Err: err, Elapsed: time.Since(start)}
			switch {
			case err != nil:
				res.State = AttachFailed
				logger.Sugar.Warnf("[UE] attach %d failed: enb=%s err=%v", i, addr, err)
			case string(setup.LateNonCriticalExtension) == rrc.PayloadRequestGood:
				res.State = AttachAccepted
				res.TransactionID = setup.TransactionID
			default:
				res.State = AttachRejected
				res.TransactionID = setup.TransactionID
			}
			tracker.markDone(res)
		}(i)
	}
	wg.Wait()
	return tracker
}

// Err joins the errors of failed attaches, nil if none failed.
func (bt *BatchTracker) Err() error {
	var errs []error
	for _, r := range bt.Results() {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return multierr.Combine(errs...)
}
