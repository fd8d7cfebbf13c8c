package params

import (
	"errors"
	"math/rand"
	"testing"
)

func TestResetIsIdempotent(t *testing.T) {
	s := NewStore(Parameters{Chaos: 0.9, Slices: 40})
	once := s.Reset()
	twice := s.Reset()
	if once != twice {
		t.Fatalf("reset not idempotent: %+v vs %+v", once, twice)
	}
	if once != Defaults() {
		t.Fatalf("reset=%+v want defaults", once)
	}
}

func TestDefaultsMatchControlSurface(t *testing.T) {
	p := Defaults()
	want := map[string]float64{
		"threshold":    200,
		"brightness":   100,
		"chaos":        0.5,
		"slices":       5,
		"displacement": 50,
		"feedback":     0.1,
		"invertChance": 0.1,
		"scale":        1.0,
		"zoomGlitch":   0.1,
	}
	got := p.Values()
	for name, v := range want {
		if got[name] != v {
			t.Fatalf("%s=%f want=%f", name, got[name], v)
		}
	}
}

func TestSetFieldClampsToRange(t *testing.T) {
	s := NewStore(Defaults())
	cases := map[string][2]float64{
		"chaos":      {4, 1},
		"slices":     {12.6, 13},
		"feedback":   {1, feedbackMax},
		"scale":      {0.1, 0.5},
		"threshold":  {-10, 0},
		"ZOOMGLITCH": {1.5, 1.5},
	}
	for name, c := range cases {
		p, err := s.SetField(name, c[0])
		if err != nil {
			t.Fatalf("SetField(%s): %v", name, err)
		}
		f, _ := Lookup(name)
		if got := f.Value(p); got != c[1] {
			t.Fatalf("%s=%f want=%f", name, got, c[1])
		}
	}
}

func TestSetFieldUnknown(t *testing.T) {
	s := NewStore(Defaults())
	before := s.Current()
	if _, err := s.SetField("gamma", 1); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if s.Current() != before {
		t.Fatalf("failed edit must not change the snapshot")
	}
}

func TestSetFieldOnlyTouchesOneField(t *testing.T) {
	s := NewStore(Defaults())
	p, err := s.SetField("displacement", 120)
	if err != nil {
		t.Fatal(err)
	}
	want := Defaults()
	want.Displacement = 120
	if p != want {
		t.Fatalf("got %+v want %+v", p, want)
	}
}

func TestRandomizeStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		p := Randomize(rng)
		if p.Clamped() != p {
			t.Fatalf("randomized params out of range: %+v", p)
		}
		if p.Feedback <= 0 || p.Feedback >= 1 {
			t.Fatalf("feedback %f must be inside (0,1)", p.Feedback)
		}
	}
}
