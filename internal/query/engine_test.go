package query

import (
	"context"
	"errors"
	"testing"
)

func TestQueryMemoizesWithinRevision(t *testing.T) {
	eng := New(nil, nil)
	calls := 0
	eng.Register("double", func(ctx context.Context, eng *Engine, input any) (any, error) {
		calls++
		return input.(int) * 2, nil
	})

	ctx := context.Background()
	out, err := eng.Query(ctx, "double", 21)
	if err != nil || out.(int) != 42 {
		t.Fatalf("Query() = %v, %v", out, err)
	}
	if out, err = eng.Query(ctx, "double", 21); err != nil || out.(int) != 42 {
		t.Fatalf("second Query() = %v, %v", out, err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestQueryReusesStaleEntryWhenDepsUnchanged(t *testing.T) {
	eng := New(nil, nil)
	leafCalls, rootCalls := 0, 0
	leafValue := 10

	eng.Register("leaf", func(ctx context.Context, eng *Engine, input any) (any, error) {
		leafCalls++
		return leafValue, nil
	})
	eng.Register("root", func(ctx context.Context, eng *Engine, input any) (any, error) {
		rootCalls++
		leaf, err := eng.Query(ctx, "leaf", nil)
		if err != nil {
			return nil, err
		}
		return leaf.(int) + 1, nil
	})

	ctx := context.Background()
	if out, err := eng.Query(ctx, "root", nil); err != nil || out.(int) != 11 {
		t.Fatalf("Query(root) = %v, %v", out, err)
	}

	eng.AdvanceRevision(false)

	if out, err := eng.Query(ctx, "root", nil); err != nil || out.(int) != 11 {
		t.Fatalf("Query(root) after revision = %v, %v", out, err)
	}
	if rootCalls != 1 {
		t.Fatalf("expected root recomputed only once (reused from stale), got %d calls", rootCalls)
	}
	if leafCalls != 2 {
		t.Fatalf("expected leaf re-queried once per revision to validate, got %d calls", leafCalls)
	}
}

func TestQueryRecomputesWhenDepChanges(t *testing.T) {
	eng := New(nil, nil)
	leafValue := 10
	rootCalls := 0

	eng.Register("leaf", func(ctx context.Context, eng *Engine, input any) (any, error) {
		return leafValue, nil
	})
	eng.Register("root", func(ctx context.Context, eng *Engine, input any) (any, error) {
		rootCalls++
		leaf, err := eng.Query(ctx, "leaf", nil)
		if err != nil {
			return nil, err
		}
		return leaf.(int) + 1, nil
	})

	ctx := context.Background()
	if _, err := eng.Query(ctx, "root", nil); err != nil {
		t.Fatalf("Query(root) error: %v", err)
	}

	leafValue = 20
	eng.AdvanceRevision(false)

	out, err := eng.Query(ctx, "root", nil)
	if err != nil || out.(int) != 21 {
		t.Fatalf("Query(root) after dep change = %v, %v", out, err)
	}
	if rootCalls != 2 {
		t.Fatalf("expected root recomputed after dep changed, got %d calls", rootCalls)
	}
}

func TestQueryDetectsCycle(t *testing.T) {
	eng := New(nil, nil)
	eng.Register("a", func(ctx context.Context, eng *Engine, input any) (any, error) {
		return eng.Query(ctx, "b", input)
	})
	eng.Register("b", func(ctx context.Context, eng *Engine, input any) (any, error) {
		return eng.Query(ctx, "a", input)
	})

	_, err := eng.Query(context.Background(), "a", 1)
	if !errors.Is(err, ErrQueryCycle) {
		t.Fatalf("expected ErrQueryCycle, got %v", err)
	}
}

func TestQueryCancelledContext(t *testing.T) {
	eng := New(nil, nil)
	eng.Register("noop", func(ctx context.Context, eng *Engine, input any) (any, error) {
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Query(ctx, "noop", nil)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestAdvanceRevisionRunsGCHookOnlyWhenRequested(t *testing.T) {
	eng := New(nil, nil)
	ran := 0
	eng.SetGCHook(func() { ran++ })

	eng.AdvanceRevision(false)
	if ran != 0 {
		t.Fatalf("expected gc hook not run, got %d", ran)
	}
	eng.AdvanceRevision(true)
	if ran != 1 {
		t.Fatalf("expected gc hook run once, got %d", ran)
	}
}
