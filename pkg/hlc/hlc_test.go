package hlc

import "testing"

func TestCompareOrdersByPhysicalThenCounterThenNode(t *testing.T) {
	cases := []struct {
		a, b Timestamp
		want int
	}{
		{Timestamp{Physical: 1, Counter: 0, NodeID: "a"}, Timestamp{Physical: 2, Counter: 0, NodeID: "a"}, -1},
		{Timestamp{Physical: 2, Counter: 0, NodeID: "a"}, Timestamp{Physical: 1, Counter: 0, NodeID: "a"}, 1},
		{Timestamp{Physical: 1, Counter: 1, NodeID: "a"}, Timestamp{Physical: 1, Counter: 2, NodeID: "a"}, -1},
		{Timestamp{Physical: 1, Counter: 1, NodeID: "a"}, Timestamp{Physical: 1, Counter: 1, NodeID: "b"}, -1},
		{Timestamp{Physical: 1, Counter: 1, NodeID: "a"}, Timestamp{Physical: 1, Counter: 1, NodeID: "a"}, 0},
	}
	for _, c := range cases {
		if got := Compare(c.a, c.b); got != c.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestClockNextIsStrictlyMonotonic(t *testing.T) {
	c := New("node-a")
	millis := []int64{100, 100, 100, 101, 101, 200}
	i := 0
	c.nowFn = func() int64 {
		v := millis[i]
		if i < len(millis)-1 {
			i++
		}
		return v
	}

	var prev Timestamp
	for j := 0; j < len(millis); j++ {
		next := c.Next()
		if j > 0 && Compare(next, prev) <= 0 {
			t.Fatalf("Next() not strictly increasing: prev=%v next=%v", prev, next)
		}
		prev = next
	}
}

func TestClockNextResetsCounterOnNewPhysicalTime(t *testing.T) {
	c := New("node-a")
	c.nowFn = func() int64 { return 100 }

	first := c.Next()
	second := c.Next()
	if first.Physical != second.Physical {
		t.Fatalf("expected same physical time, got %d and %d", first.Physical, second.Physical)
	}
	if second.Counter != first.Counter+1 {
		t.Fatalf("expected counter to increment, got %d -> %d", first.Counter, second.Counter)
	}

	c.nowFn = func() int64 { return 200 }
	third := c.Next()
	if third.Counter != 0 {
		t.Fatalf("expected counter reset to 0 on new physical time, got %d", third.Counter)
	}
}

func TestMergeResultStrictlyGreaterThanBothInputs(t *testing.T) {
	cases := []struct {
		name string
		a, b Timestamp
	}{
		{"disjoint physical", Timestamp{Physical: 100, Counter: 5, NodeID: "a"}, Timestamp{Physical: 50, Counter: 9, NodeID: "b"}},
		{"equal physical, different counters", Timestamp{Physical: 100, Counter: 5, NodeID: "a"}, Timestamp{Physical: 100, Counter: 9, NodeID: "b"}},
		{"equal physical and counter", Timestamp{Physical: 100, Counter: 5, NodeID: "a"}, Timestamp{Physical: 100, Counter: 5, NodeID: "b"}},
		{"b ahead", Timestamp{Physical: 10, Counter: 0, NodeID: "a"}, Timestamp{Physical: 500, Counter: 3, NodeID: "b"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			merged := mergeAt(0, c.a, c.b, "a")
			if Compare(merged, c.a) <= 0 {
				t.Errorf("merged %v not greater than a %v", merged, c.a)
			}
			if Compare(merged, c.b) <= 0 {
				t.Errorf("merged %v not greater than b %v", merged, c.b)
			}
		})
	}
}

func TestMergeUsesWallClockWhenAheadOfBothInputs(t *testing.T) {
	a := Timestamp{Physical: 10, Counter: 0, NodeID: "a"}
	b := Timestamp{Physical: 20, Counter: 0, NodeID: "b"}
	merged := mergeAt(1000, a, b, "a")
	if merged.Physical != 1000 {
		t.Fatalf("expected physical to adopt wall clock 1000, got %d", merged.Physical)
	}
	if merged.Counter != 0 {
		t.Fatalf("expected counter reset to 0 when wall clock strictly dominates, got %d", merged.Counter)
	}
}

func TestClockObserveAdoptsRemoteAndStaysMonotonic(t *testing.T) {
	c := New("node-a")
	c.nowFn = func() int64 { return 100 }

	local := c.Next()
	remote := Timestamp{Physical: 100, Counter: local.Counter + 10, NodeID: "node-b"}

	observed := c.Observe(remote)
	if Compare(observed, local) <= 0 {
		t.Errorf("observed %v not greater than local %v", observed, local)
	}
	if Compare(observed, remote) <= 0 {
		t.Errorf("observed %v not greater than remote %v", observed, remote)
	}

	next := c.Next()
	if Compare(next, observed) <= 0 {
		t.Errorf("Next() after Observe not strictly increasing: observed=%v next=%v", observed, next)
	}
}

func TestTimestampStringFormat(t *testing.T) {
	ts := Timestamp{Physical: 42, Counter: 7, NodeID: "node-x"}
	want := "42.7@node-x"
	if got := ts.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
