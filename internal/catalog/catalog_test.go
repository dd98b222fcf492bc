package catalog

import (
	"errors"
	"strings"
	"testing"
)

func unit(id string, deps ...string) Unit {
	return Unit{
		Kind:          UnitKind,
		SchemaVersion: 1,
		UnitID:        id,
		Title:         id,
		DependsOn:     deps,
		Tests:         []TestCase{{Name: "TestOne"}},
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New("x", []Unit{unit("aa"), unit("aa")})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.UnitID != "aa" {
		t.Fatalf("expected *Error naming the unit, got %#v", err)
	}
}

func TestNewRejectsUnknownDependency(t *testing.T) {
	_, err := New("x", []Unit{unit("aa", "zz")})
	if !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}
	if !strings.Contains(err.Error(), `"zz"`) {
		t.Fatalf("expected missing id in message, got %q", err.Error())
	}
}

func TestNewRejectsUnitWithoutTests(t *testing.T) {
	u := unit("aa")
	u.Tests = nil
	_, err := New("x", []Unit{u})
	if !errors.Is(err, ErrNoTests) {
		t.Fatalf("expected ErrNoTests, got %v", err)
	}
}

func TestNewRejectsCycles(t *testing.T) {
	cases := map[string][]Unit{
		"self":  {unit("aa", "aa")},
		"pair":  {unit("aa", "bb"), unit("bb", "aa")},
		"chain": {unit("root"), unit("aa", "root", "cc"), unit("bb", "aa"), unit("cc", "bb")},
	}
	for name, units := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New("x", units)
			if !errors.Is(err, ErrCyclicDependency) {
				t.Fatalf("expected ErrCyclicDependency, got %v", err)
			}
			if strings.Contains(err.Error(), "root") {
				t.Fatalf("root is not on the cycle: %q", err.Error())
			}
		})
	}
}

func TestOrderAndDependencyQueries(t *testing.T) {
	cat, err := New("x", []Unit{
		unit("dd", "bb", "cc"),
		unit("aa"),
		unit("bb", "aa"),
		unit("cc", "aa", "aa"),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	order := cat.Order()
	want := []string{"aa", "bb", "cc", "dd"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if deps := cat.DependenciesOf("dd"); strings.Join(deps, ",") != "aa,bb,cc" {
		t.Fatalf("unexpected dependencies %v", deps)
	}
	if deps := cat.DependenciesOf("aa"); len(deps) != 0 {
		t.Fatalf("expected no dependencies, got %v", deps)
	}
	if got := cat.Dependents("aa"); strings.Join(got, ",") != "bb,cc" {
		t.Fatalf("unexpected dependents %v", got)
	}
}

func TestLookupsAreBoundsChecked(t *testing.T) {
	cat, err := New("x", []Unit{unit("aa"), unit("bb")})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := cat.ByIndex(-1); ok {
		t.Fatalf("expected miss at -1")
	}
	if _, ok := cat.ByIndex(2); ok {
		t.Fatalf("expected miss past end")
	}
	if u, ok := cat.ByIndex(1); !ok || u.UnitID != "bb" || u.Ordinal != 1 {
		t.Fatalf("unexpected unit %+v", u)
	}
	if _, ok := cat.ByID("zz"); ok {
		t.Fatalf("expected miss for unknown id")
	}
}

func TestHintGroupsFollowTestOrder(t *testing.T) {
	u := Unit{Tests: []TestCase{{Name: "TestA", Hints: []string{"a1"}}, {Name: "TestB"}}}
	groups := u.HintGroups()
	if len(groups) != 2 || groups[0][0] != "a1" || len(groups[1]) != 0 {
		t.Fatalf("unexpected groups %v", groups)
	}
	if u.TestIndex("TestB") != 1 || u.TestIndex("TestC") != -1 {
		t.Fatalf("unexpected test index lookup")
	}
}

func TestNewRejectsBadTests(t *testing.T) {
	cases := map[string][]TestCase{
		"duplicate name": {{Name: "TestOne"}, {Name: "TestOne"}},
		"too many hints": {{Name: "TestOne", Hints: []string{"a", "b", "c", "d"}}},
	}
	for name, tests := range cases {
		t.Run(name, func(t *testing.T) {
			u := unit("aa")
			u.Tests = tests
			_, err := New("x", []Unit{u})
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
			var cerr *Error
			if !errors.As(err, &cerr) || cerr.UnitID != "aa" {
				t.Fatalf("expected *Error naming the unit, got %#v", err)
			}
		})
	}
}
