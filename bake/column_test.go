package bake

import (
	"sync"
	"testing"

	"gridnav/gridmap"
)

func TestColumnNormalize(t *testing.T) {
	c := NewColumn(
		Span{Begin: 0, End: 20},
		Span{Begin: 60, End: 80, Material: 1},
		Span{Begin: 10, End: 40},
		Span{Begin: 50, End: 55},
	)
	want := []Span{{0, 40, 0}, {50, 55, 0}, {60, 80, 1}}
	got := c.Spans()
	if len(got) != len(want) {
		t.Fatalf("spans = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("spans = %v, want %v", got, want)
		}
	}
}

func TestColumnSupport(t *testing.T) {
	rule := DefaultSupportRule()
	foliage := Material(2)

	cases := []struct {
		name   string
		spans  []Span
		h      uint16
		rule   SupportRule
		want   uint16
		wantOK bool
	}{
		{"floor under roof", []Span{{0, 20, 0}, {100, 120, 0}}, 20, rule, 20, true},
		{"step up", []Span{{0, 20, 0}, {20, 30, 1}}, 20, rule, 30, true},
		{"wall too high", []Span{{0, 20, 0}, {20, 50, 1}}, 20, rule, 0, false},
		{"fall down", []Span{{0, 20, 0}, {200, 220, 0}}, 300, rule, 220, true},
		{"low ceiling", []Span{{0, 20, 0}, {40, 60, foliage}}, 20, rule, 0, false},
		{"ignored ceiling", []Span{{0, 20, 0}, {40, 60, foliage}}, 20,
			SupportRule{StepUp: rule.StepUp, Headroom: rule.Headroom, IgnoreHeadroom: 1 << foliage}, 20, true},
		{"empty", nil, 0, rule, 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := NewColumn(c.spans...).Support(c.h, c.rule)
			if got != c.want || ok != c.wantOK {
				t.Fatalf("Support(%d) = %d,%v want %d,%v", c.h, got, ok, c.want, c.wantOK)
			}
		})
	}
}

func TestColumnMap(t *testing.T) {
	cm := NewColumnMap(gridmap.Vec3(0, 2, 0), 1, DefaultSupportRule(), 0)
	floor := []Span{{Begin: 0, End: 20}}
	a := cm.Set(1, 1, NewColumn(floor...))
	cm.Set(2, 1, NewColumn(Span{Begin: 0, End: 100}))
	if b := cm.Set(3, 1, NewColumn(floor...)); b != a {
		t.Fatalf("identical columns interned as %d and %d", a, b)
	}
	if cm.Len() != 3 || cm.Unique() != 2 {
		t.Fatalf("len %d unique %d", cm.Len(), cm.Unique())
	}

	if h := cm.SampleHeight(gridmap.Vec3(1.5, 0, 1.5)); h != 3 {
		t.Errorf("floor height = %v, want 3", h)
	}
	if h := cm.SampleHeight(gridmap.Vec3(7, 0, 7)); h != 2 {
		t.Errorf("unset height = %v, want origin 2", h)
	}
	if !cm.IsBlocked(gridmap.Vec3(2.5, 0, 1.5), 0) {
		t.Error("column without support should block")
	}
	if cm.IsBlocked(gridmap.Vec3(1.5, 0, 1.5), 0) || cm.IsBlocked(gridmap.Vec3(-3, 0, 1), 0) {
		t.Error("standable or unset column blocks")
	}
}

func TestColumnMapBakesMatrix(t *testing.T) {
	cm := NewColumnMap(gridmap.Vector3{}, 1, DefaultSupportRule(), 0)
	for z := 0; z < 4; z++ {
		for x := 0; x < 4; x++ {
			cm.Set(x, z, NewColumn(Span{Begin: 0, End: 20}))
		}
	}
	cm.Set(2, 1, NewColumn(Span{Begin: 0, End: 100}))

	s := NewSpace()
	if err := s.AddBox("crate", gridmap.Bounds{MinX: 0, MinZ: 3, MaxX: 1, MaxZ: 4}); err != nil {
		t.Fatal(err)
	}
	m := gridmap.NewCellMatrix(gridmap.MatrixConfig{Columns: 4, Rows: 4, CellSize: 1},
		gridmap.BakeSources{Heights: cm, Obstruction: AnyOf{s, cm, nil}})

	if !m.CellAt(2, 1).IsPermanentlyBlocked() {
		t.Error("tall column not blocked")
	}
	if !m.CellAt(0, 3).IsPermanentlyBlocked() {
		t.Error("crate not blocked")
	}
	if m.CellAt(0, 0).IsPermanentlyBlocked() {
		t.Error("floor cell blocked")
	}
}

func TestColumnStoreConcurrentIntern(t *testing.T) {
	cs := newColumnStore()
	ids := make([]ColumnID, 16)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = cs.Intern(NewColumn(Span{Begin: 5, End: 9, Material: 3}))
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("ids differ: %v", ids)
		}
	}
	if cs.Len() != 1 {
		t.Fatalf("store holds %d columns", cs.Len())
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	if _, ok := c.Get([]byte("a")); ok {
		t.Fatal("empty cache hit")
	}
	key := []byte("grid-a")
	snap := []byte{1, 2, 3}
	c.Put(key, snap)
	snap[0] = 9
	key[0] = 'x'

	got, ok := c.Get([]byte("grid-a"))
	if !ok || got[0] != 1 {
		t.Fatalf("Get = %v,%v; cache must keep its own copy", got, ok)
	}
	c.Put([]byte("grid-a"), []byte{4})
	c.Put([]byte("grid-b"), []byte{5})
	if got, _ := c.Get([]byte("grid-a")); len(got) != 1 || got[0] != 4 {
		t.Fatalf("replaced entry = %v", got)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d", c.Len())
	}
}
