package cosmos

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"
	"time"
)

func newTestEngine() *Engine {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewEngine(
		WithClock(func() time.Time { return fixed }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func gridStats(grid [][]float64) (mean, std float64) {
	var sum float64
	n := 0
	for _, row := range grid {
		for _, v := range row {
			sum += v
			n++
		}
	}
	mean = sum / float64(n)
	var sq float64
	for _, row := range grid {
		for _, v := range row {
			sq += (v - mean) * (v - mean)
		}
	}
	return mean, math.Sqrt(sq / float64(n))
}

func TestBuildPopulation_Deterministic(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	a, err := e.BuildPopulation(ctx, 3, 4, 42)
	if err != nil {
		t.Fatalf("BuildPopulation() error = %v", err)
	}
	b, err := e.BuildPopulation(ctx, 3, 4, 42)
	if err != nil {
		t.Fatalf("BuildPopulation() error = %v", err)
	}

	ra, rb := a.Root(), b.Root()
	if ra.DarkEnergy != rb.DarkEnergy || ra.MatterDensity != rb.MatterDensity ||
		ra.HubbleConstant != rb.HubbleConstant || ra.Curvature != rb.Curvature ||
		ra.Dimensions != rb.Dimensions || ra.ID != rb.ID {
		t.Fatalf("parents differ: %+v vs %+v", ra, rb)
	}

	for g := 1; g <= 3; g++ {
		ca, cb := a.Children(g), b.Children(g)
		for i := range ca {
			if ca[i].LocalDensity != cb[i].LocalDensity ||
				ca[i].ExpansionRate != cb[i].ExpansionRate ||
				ca[i].Temperature != cb[i].Temperature ||
				ca[i].Age != cb[i].Age ||
				ca[i].MatterGrid[0][0] != cb[i].MatterGrid[0][0] {
				t.Errorf("generation %d child %d differs", g, i+1)
			}
		}
	}
	if a.TotalMassEnergy() != b.TotalMassEnergy() {
		t.Errorf("TotalMassEnergy() = %v vs %v", a.TotalMassEnergy(), b.TotalMassEnergy())
	}
}

func TestBuildPopulation_DifferentSeeds(t *testing.T) {
	e := newTestEngine()
	a, _ := e.BuildPopulation(context.Background(), 1, 1, 1)
	b, _ := e.BuildPopulation(context.Background(), 1, 1, 2)
	if a.Root().DarkEnergy == b.Root().DarkEnergy {
		t.Error("different seeds produced identical dark energy")
	}
}

func TestBuildPopulation_Size(t *testing.T) {
	tests := []struct {
		name     string
		gens     int
		children int
	}{
		{"single", 1, 1},
		{"wide", 2, 7},
		{"deep", 6, 2},
		{"no children", 3, 0},
		{"no generations", 0, 5},
	}

	e := newTestEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := e.BuildPopulation(context.Background(), tt.gens, tt.children, 7)
			if err != nil {
				t.Fatalf("BuildPopulation() error = %v", err)
			}
			if got, want := p.TotalUniverses(), 1+tt.gens*tt.children; got != want {
				t.Errorf("TotalUniverses() = %d, want %d", got, want)
			}
			if p.GenerationCount() != tt.gens {
				t.Errorf("GenerationCount() = %d, want %d", p.GenerationCount(), tt.gens)
			}
			for k := 1; k <= tt.gens; k++ {
				if got := len(p.Children(k)); got != tt.children {
					t.Errorf("len(Children(%d)) = %d, want %d", k, got, tt.children)
				}
			}
			if got := p.Children(tt.gens + 1); len(got) != 0 {
				t.Errorf("Children(%d) = %d entries, want none", tt.gens+1, len(got))
			}
		})
	}
}

func TestBuildPopulation_Order(t *testing.T) {
	p, err := newTestEngine().BuildPopulation(context.Background(), 3, 3, 11)
	if err != nil {
		t.Fatalf("BuildPopulation() error = %v", err)
	}

	want := 1
	p.Each(func(generation int, children []ChildUniverse) {
		if generation != want {
			t.Errorf("Each visited generation %d, want %d", generation, want)
		}
		for i, c := range children {
			if c.Generation != generation || c.Index != i+1 {
				t.Errorf("child at %d/%d has generation %d index %d", generation, i+1, c.Generation, c.Index)
			}
			if c.ParentID != p.Root().ID {
				t.Errorf("ParentID = %q, want %q", c.ParentID, p.Root().ID)
			}
		}
		want++
	})
}

func TestBuildPopulation_MatchesManualDerivation(t *testing.T) {
	e := newTestEngine()
	p, err := e.BuildPopulation(context.Background(), 2, 2, 99)
	if err != nil {
		t.Fatalf("BuildPopulation() error = %v", err)
	}

	rng, _ := NewStream(99)
	root := e.SampleRoot(rng)
	for g := 1; g <= 2; g++ {
		for idx := 1; idx <= 2; idx++ {
			child, err := e.DeriveChild(rng, root, g, idx)
			if err != nil {
				t.Fatalf("DeriveChild() error = %v", err)
			}
			if got := p.Children(g)[idx-1].LocalDensity; got != child.LocalDensity {
				t.Errorf("child %d/%d density = %v, want %v", g, idx, got, child.LocalDensity)
			}
		}
	}
}

func TestBuildPopulation_InvalidArguments(t *testing.T) {
	tests := []struct {
		name     string
		gens     int
		children int
		seed     int64
	}{
		{"negative generations", -1, 4, 1},
		{"negative children", 2, -3, 1},
		{"negative seed", 2, 2, -5},
		{"seed too large", 2, 2, MaxSeed + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine()
			streams := 0
			e.newStream = func(seed int64) (*rand.Rand, error) {
				streams++
				return NewStream(seed)
			}

			p, err := e.BuildPopulation(context.Background(), tt.gens, tt.children, tt.seed)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("BuildPopulation() error = %v, want ErrInvalidArgument", err)
			}
			if p != nil {
				t.Error("BuildPopulation() returned a partial population")
			}
			if streams != 0 {
				t.Errorf("%d streams created before rejection, want 0", streams)
			}
		})
	}
}

func TestBuildPopulation_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine().BuildPopulation(ctx, 2, 2, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("BuildPopulation() error = %v, want context.Canceled", err)
	}
}

func TestDeriveChild_Clamping(t *testing.T) {
	e := newTestEngine()
	rng, _ := NewStream(5)
	root := e.SampleRoot(rng)

	// Large generations give perturbations far outside the valid interval.
	for _, g := range []int{1, 10, 50} {
		for idx := 1; idx <= 40; idx++ {
			child, err := e.DeriveChild(rng, root, g, idx)
			if err != nil {
				t.Fatalf("DeriveChild() error = %v", err)
			}
			if child.LocalDensity < MinDensity || child.LocalDensity > MaxDensity {
				t.Errorf("generation %d: LocalDensity = %v outside [%v, %v]", g, child.LocalDensity, MinDensity, MaxDensity)
			}
			if child.Age < 0 || child.Age > UniverseAge {
				t.Errorf("generation %d: Age = %v outside [0, %v]", g, child.Age, UniverseAge)
			}
		}
	}
}

func TestDeriveChild_Derived(t *testing.T) {
	e := newTestEngine()
	rng, _ := NewStream(3)
	root := e.SampleRoot(rng)

	child, err := e.DeriveChild(rng, root, 4, 2)
	if err != nil {
		t.Fatalf("DeriveChild() error = %v", err)
	}

	if got, want := len(child.MatterGrid), 40; got != want {
		t.Errorf("grid side = %d, want %d", got, want)
	}
	for i, row := range child.MatterGrid {
		if len(row) != len(child.MatterGrid) {
			t.Fatalf("grid row %d has %d columns, want %d", i, len(row), len(child.MatterGrid))
		}
	}
	if child.FieldVariance != 0.2 {
		t.Errorf("FieldVariance = %v, want 0.2", child.FieldVariance)
	}
	if math.Abs(child.StabilityIndex-0.87) > 1e-12 {
		t.Errorf("StabilityIndex = %v, want 0.87", child.StabilityIndex)
	}

	effAge := math.Max(child.Age, MinAgeFloor)
	wantTemp := CMBTemperature * (root.HubbleConstant / child.ExpansionRate) * (UniverseAge / effAge)
	if math.Abs(child.Temperature-wantTemp) > 1e-9*math.Abs(wantTemp) {
		t.Errorf("Temperature = %v, want %v", child.Temperature, wantTemp)
	}
}

func TestDeriveChild_InvalidGeneration(t *testing.T) {
	e := newTestEngine()
	rng, _ := NewStream(1)
	root := e.SampleRoot(rng)

	if _, err := e.DeriveChild(rng, root, 0, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("DeriveChild(generation 0) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := e.DeriveChild(rng, root, 1, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("DeriveChild(index 0) error = %v, want ErrInvalidArgument", err)
	}
}

func TestStabilityIndex(t *testing.T) {
	tests := []struct {
		generation int
		want       float64
	}{
		{1, 0.93},
		{5, 0.85},
		{20, 0.55},
		{42, 0.11},
		{43, 0.1},
		{100, 0.1},
		{10000, 0.1},
	}

	for _, tt := range tests {
		got := StabilityIndex(tt.generation)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("StabilityIndex(%d) = %v, want %v", tt.generation, got, tt.want)
		}
		if got < StabilityFloor {
			t.Errorf("StabilityIndex(%d) = %v below floor", tt.generation, got)
		}
	}
}

func TestFieldVariance_Decreasing(t *testing.T) {
	prev := FieldVariance(0)
	if prev != 1 {
		t.Errorf("FieldVariance(0) = %v, want 1", prev)
	}
	for g := 1; g <= 50; g++ {
		v := FieldVariance(g)
		if v <= 0 || v >= prev {
			t.Errorf("FieldVariance(%d) = %v, previous %v", g, v, prev)
		}
		prev = v
	}
}

func TestStandardizeGrid(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, side := range []int{2, 3, 25, 70} {
		grid := make([][]float64, side)
		for i := range grid {
			grid[i] = make([]float64, side)
			for j := range grid[i] {
				grid[i][j] = 5 + 3*rng.NormFloat64()
			}
		}

		mean, std := gridStats(StandardizeGrid(grid))
		if math.Abs(mean) > 1e-9 {
			t.Errorf("side %d: mean = %v, want 0", side, mean)
		}
		if math.Abs(std-1) > 1e-9 {
			t.Errorf("side %d: std = %v, want 1", side, std)
		}
	}
}

func TestStandardizeGrid_Constant(t *testing.T) {
	grid := [][]float64{{2, 2}, {2, 2}}
	StandardizeGrid(grid)
	for _, row := range grid {
		for _, v := range row {
			if v != 0 {
				t.Fatalf("constant grid value = %v, want 0", v)
			}
		}
	}
}

func TestBuildPopulation_GridsNormalized(t *testing.T) {
	p, err := newTestEngine().BuildPopulation(context.Background(), 3, 2, 21)
	if err != nil {
		t.Fatalf("BuildPopulation() error = %v", err)
	}
	for _, c := range p.AllChildren() {
		if got, want := len(c.MatterGrid), GridSide(c.Generation); got != want {
			t.Errorf("%s: grid side = %d, want %d", c.ID, got, want)
		}
		mean, std := gridStats(c.MatterGrid)
		if math.Abs(mean) > 1e-9 || math.Abs(std-1) > 1e-9 {
			t.Errorf("%s: grid mean=%v std=%v", c.ID, mean, std)
		}
	}
}

func TestBuildPopulationParallel(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	one, err := e.BuildPopulationParallel(ctx, 4, 5, 8, 1)
	if err != nil {
		t.Fatalf("BuildPopulationParallel() error = %v", err)
	}
	many, err := e.BuildPopulationParallel(ctx, 4, 5, 8, 8)
	if err != nil {
		t.Fatalf("BuildPopulationParallel() error = %v", err)
	}

	if one.TotalUniverses() != 21 {
		t.Errorf("TotalUniverses() = %d, want 21", one.TotalUniverses())
	}
	for g := 1; g <= 4; g++ {
		for i := range one.Children(g) {
			a, b := one.Children(g)[i], many.Children(g)[i]
			if a.LocalDensity != b.LocalDensity || a.Age != b.Age || a.Index != i+1 {
				t.Errorf("child %d/%d depends on worker count", g, i+1)
			}
		}
	}
	if one.Root().DarkEnergy != many.Root().DarkEnergy {
		t.Error("parent depends on worker count")
	}
}

func TestBuildPopulationParallel_InvalidWorkers(t *testing.T) {
	_, err := newTestEngine().BuildPopulationParallel(context.Background(), 1, 1, 1, 0)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("BuildPopulationParallel(workers=0) error = %v, want ErrInvalidArgument", err)
	}
}

func TestEvolutionTimeline(t *testing.T) {
	tl := EvolutionTimeline()
	if len(tl) != 139 {
		t.Fatalf("len(timeline) = %d, want 139", len(tl))
	}
	if tl[0] != 0 {
		t.Errorf("timeline[0] = %v, want 0", tl[0])
	}
	if math.Abs(tl[len(tl)-1]-UniverseAge) > 1 {
		t.Errorf("timeline end = %v, want %v", tl[len(tl)-1], UniverseAge)
	}
	for i := 1; i < len(tl); i++ {
		if math.Abs(tl[i]-tl[i-1]-TimelineStep) > 1 {
			t.Fatalf("step %d = %v, want %v", i, tl[i]-tl[i-1], TimelineStep)
		}
	}
}

func TestTotalMassEnergy(t *testing.T) {
	p, err := newTestEngine().BuildPopulation(context.Background(), 2, 3, 17)
	if err != nil {
		t.Fatalf("BuildPopulation() error = %v", err)
	}
	want := p.Root().DarkEnergy + p.Root().MatterDensity
	for _, c := range p.AllChildren() {
		want += c.LocalDensity
	}
	if p.TotalMassEnergy() != want {
		t.Errorf("TotalMassEnergy() = %v, want %v", p.TotalMassEnergy(), want)
	}
}
