package population

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"multiverse-server/internal/cosmos"
	"multiverse-server/internal/metrics"
	"multiverse-server/internal/shared/config"
	"multiverse-server/internal/shared/errors"
)

func intPtr(v int) *int { return &v }
func seedPtr(v int64) *int64 { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLimits() config.SimulationConfig {
	return config.SimulationConfig{
		DefaultGenerations:           2,
		DefaultChildrenPerGeneration: 3,
		DefaultSeed:                  42,
		MaxGenerations:               10,
		MaxChildrenPerGeneration:     20,
		MaxGridCells:                 100_000,
		DefaultWorkers:               2,
		MaxWorkers:                   4,
	}
}

type countingCache struct {
	*MemoryCache
	hits, sets int
}

func (c *countingCache) GetStatistics(ctx context.Context, id string) (*cosmos.Statistics, bool, error) {
	stats, ok, err := c.MemoryCache.GetStatistics(ctx, id)
	if ok {
		c.hits++
	}
	return stats, ok, err
}

func (c *countingCache) SetStatistics(ctx context.Context, id string, stats *cosmos.Statistics) error {
	c.sets++
	return c.MemoryCache.SetStatistics(ctx, id, stats)
}

func newTestService(cache Cache) (*Service, *MemoryStore) {
	store := NewMemoryStore()
	engine := cosmos.NewEngine(
		cosmos.WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }),
		cosmos.WithLogger(testLogger()),
	)
	return NewService(store, cache, engine, testLimits(), metrics.NewRecorder(), testLogger()), store
}

func TestService_CreateDefaults(t *testing.T) {
	svc, store := newTestService(nil)

	result, err := svc.Create(context.Background(), CreateRequest{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rec := result.Record
	if rec.Generations != 2 || rec.ChildrenPerGeneration != 3 || rec.Seed != 42 {
		t.Errorf("record = %+v, want defaults 2/3/42", rec)
	}
	if rec.TotalUniverses != 7 {
		t.Errorf("TotalUniverses = %d, want 7", rec.TotalUniverses)
	}
	if result.Statistics == nil || result.Statistics.TotalUniverses != 7 {
		t.Errorf("Statistics = %+v", result.Statistics)
	}

	stored, err := store.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if stored.Population.Root().ID != rec.ParentID {
		t.Errorf("stored parent = %q, want %q", stored.Population.Root().ID, rec.ParentID)
	}
}

func TestService_CreateMatchesEngine(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	result, err := svc.Create(ctx, CreateRequest{Generations: intPtr(3), ChildrenPerGeneration: intPtr(4), Seed: seedPtr(9)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	pop, _ := svc.engine.BuildPopulation(ctx, 3, 4, 9)
	want, _ := cosmos.Summarize(pop)
	if result.Statistics.MeanDensity != want.MeanDensity || result.Statistics.StdDensity != want.StdDensity {
		t.Errorf("Statistics = %+v, want %+v", result.Statistics, want)
	}
}

func TestService_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"negative generations", CreateRequest{Generations: intPtr(-1), ChildrenPerGeneration: intPtr(4)}},
		{"negative children", CreateRequest{ChildrenPerGeneration: intPtr(-2)}},
		{"negative seed", CreateRequest{Seed: seedPtr(-1)}},
		{"too many generations", CreateRequest{Generations: intPtr(11)}},
		{"too many children", CreateRequest{ChildrenPerGeneration: intPtr(21)}},
		{"grid budget", CreateRequest{Generations: intPtr(10), ChildrenPerGeneration: intPtr(20)}},
		{"too many workers", CreateRequest{Parallel: true, Workers: 5}},
		{"negative workers", CreateRequest{Parallel: true, Workers: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(nil)
			_, err := svc.Create(context.Background(), tt.req)
			if errors.GetType(err) != errors.ErrorTypeValidation {
				t.Fatalf("Create() error = %v, want validation error", err)
			}
			records, _ := store.List(context.Background())
			if len(records) != 0 {
				t.Errorf("%d records stored after rejected request", len(records))
			}
		})
	}
}

func TestExceedsGridBudget(t *testing.T) {
	tests := []struct {
		name                  string
		generations, children int
		limit                 int64
		want                  bool
	}{
		{"at limit", 1, 2, 1250, false},
		{"one child over", 1, 3, 1250, true},
		{"second generation over", 2, 1, 1524, true},
		{"no children", math.MaxInt, 0, 1, false},
		{"no generations", 0, math.MaxInt, 1, false},
		{"huge request", math.MaxInt, math.MaxInt, 1 << 62, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exceedsGridBudget(tt.generations, tt.children, tt.limit); got != tt.want {
				t.Errorf("exceedsGridBudget(%d, %d, %d) = %v, want %v", tt.generations, tt.children, tt.limit, got, tt.want)
			}
		})
	}
}

func TestService_CreateWithinGridBudget(t *testing.T) {
	svc, _ := newTestService(nil)
	// 10 * (25² + 30² + 35² + 40² + 45²) = 63750 cells.
	result, err := svc.Create(context.Background(), CreateRequest{Generations: intPtr(5), ChildrenPerGeneration: intPtr(10)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.Record.TotalUniverses != 51 {
		t.Errorf("TotalUniverses = %d, want 51", result.Record.TotalUniverses)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorType
	}{
		{"invalid argument", fmt.Errorf("%w: generations -1", cosmos.ErrInvalidArgument), errors.ErrorTypeValidation},
		{"empty population", cosmos.ErrEmptyPopulation, errors.ErrorTypeUnprocessable},
		{"other", stderrors.New("boom"), errors.ErrorTypeInternal},
		{"already classified", errors.NotFoundf("population %s not found", "p1"), errors.ErrorTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("failed", tt.err)
			if errors.GetType(got) != tt.want {
				t.Errorf("GetType(classify()) = %v, want %v", errors.GetType(got), tt.want)
			}
			if !stderrors.Is(got, tt.err) {
				t.Error("classify() lost the original error")
			}
		})
	}

	if classify("failed", nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}

func TestService_CreateParallel(t *testing.T) {
	svc, _ := newTestService(nil)
	result, err := svc.Create(context.Background(), CreateRequest{Parallel: true, Seed: seedPtr(3)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !result.Record.Parallel || result.Record.TotalUniverses != 7 {
		t.Errorf("record = %+v", result.Record)
	}
}

func TestService_EmptyPopulation(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	result, err := svc.Create(ctx, CreateRequest{Generations: intPtr(0), ChildrenPerGeneration: intPtr(0)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.Statistics != nil {
		t.Errorf("Statistics = %+v, want nil", result.Statistics)
	}

	_, err = svc.Statistics(ctx, result.Record.ID)
	if errors.GetType(err) != errors.ErrorTypeUnprocessable {
		t.Errorf("Statistics() error type = %v, want unprocessable", errors.GetType(err))
	}
	if !stderrors.Is(err, cosmos.ErrEmptyPopulation) {
		t.Errorf("Statistics() error = %v, want ErrEmptyPopulation", err)
	}
}

func TestService_StatisticsCached(t *testing.T) {
	cache := &countingCache{MemoryCache: NewMemoryCache()}
	svc, _ := newTestService(cache)
	ctx := context.Background()

	result, err := svc.Create(ctx, CreateRequest{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets after Create = %d, want 1", cache.sets)
	}

	stats, err := svc.Statistics(ctx, result.Record.ID)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}
	if stats.MeanDensity != result.Statistics.MeanDensity {
		t.Errorf("cached MeanDensity = %v, want %v", stats.MeanDensity, result.Statistics.MeanDensity)
	}

	if err := cache.Invalidate(ctx, result.Record.ID); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	again, err := svc.Statistics(ctx, result.Record.ID)
	if err != nil {
		t.Fatalf("Statistics() after invalidation error = %v", err)
	}
	if again.MeanDensity != result.Statistics.MeanDensity {
		t.Errorf("recomputed MeanDensity = %v, want %v", again.MeanDensity, result.Statistics.MeanDensity)
	}
	if cache.sets != 2 {
		t.Errorf("cache sets = %d, want 2", cache.sets)
	}
}

func TestService_Children(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	result, err := svc.Create(ctx, CreateRequest{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	children, err := svc.Children(ctx, result.Record.ID, 2)
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	if len(children) != 3 {
		t.Errorf("len(Children(2)) = %d, want 3", len(children))
	}

	missing, err := svc.Children(ctx, result.Record.ID, 9)
	if err != nil {
		t.Fatalf("Children(9) error = %v", err)
	}
	if missing == nil || len(missing) != 0 {
		t.Errorf("Children(9) = %v, want empty non-nil slice", missing)
	}
}

func TestService_Delete(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	result, _ := svc.Create(ctx, CreateRequest{})
	if err := svc.Delete(ctx, result.Record.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, result.Record.ID); errors.GetType(err) != errors.ErrorTypeNotFound {
		t.Errorf("Get() after delete error = %v, want not found", err)
	}
	if _, err := svc.Statistics(ctx, result.Record.ID); errors.GetType(err) != errors.ErrorTypeNotFound {
		t.Errorf("Statistics() after delete error = %v, want not found", err)
	}
	if err := svc.Delete(ctx, result.Record.ID); errors.GetType(err) != errors.ErrorTypeNotFound {
		t.Errorf("second Delete() error = %v, want not found", err)
	}
}

func TestService_List(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, CreateRequest{Seed: seedPtr(int64(i))}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	records, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 3 {
		t.Errorf("len(List()) = %d, want 3", len(records))
	}
}
