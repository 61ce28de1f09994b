package utils

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPipelineRun(t *testing.T) {
	p := NewPipeline[string, string](WithConcurrency(3))

	var mu sync.Mutex
	var got []string
	res, err := p.Run(
		context.Background(),
		[]string{"a", "b", "bad", "c", "empty"},
		func(ctx context.Context, in string) ([]string, error) {
			switch in {
			case "bad":
				return nil, errors.New("boom")
			case "empty":
				return nil, nil
			}
			return []string{in, strings.ToUpper(in)}, nil
		},
		func(rows []string) error {
			mu.Lock()
			got = append(got, rows...)
			mu.Unlock()
			return nil
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	sort.Strings(got)
	if diff := cmp.Diff([]string{"A", "B", "C", "a", "b", "c"}, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if res.TotalItems != 5 || res.ProcessedItems != 4 || res.OutputRows != 6 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Errors) != 1 || res.FirstError().Error() != "boom" {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestPipelineConsumeError(t *testing.T) {
	p := NewPipeline[int, int](WithConcurrency(1))
	res, err := p.Run(context.Background(), []int{1},
		func(ctx context.Context, in int) ([]int, error) { return []int{in}, nil },
		func(rows []int) error { return errors.New("disk full") },
	)
	if err != nil {
		t.Fatal(err)
	}
	if res.OutputRows != 0 || !strings.Contains(res.ErrorSummary(), "disk full") {
		t.Errorf("result = %+v", res)
	}
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline[int, int](WithConcurrency(2))
	res, err := p.Run(ctx, []int{1, 2, 3},
		func(ctx context.Context, in int) ([]int, error) {
			t.Errorf("input %d processed after cancel", in)
			return nil, nil
		},
		func(rows []int) error { return nil },
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if res.SkippedItems != 3 || res.ProcessedItems != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestPipelineEmpty(t *testing.T) {
	p := NewPipeline[int, int]()
	res, err := p.Run(context.Background(), nil,
		func(ctx context.Context, in int) ([]int, error) { return nil, nil },
		func(rows []int) error { return nil },
	)
	if err != nil || res.TotalItems != 0 {
		t.Errorf("got %+v, %v", res, err)
	}
}
