package builder_test

import (
	"math/rand"
	"path/filepath"
	"slices"
	"sort"
	"testing"

	"github.com/go-faker/faker/v4"

	"github.com/LandSharkFive/DiskTwo/pkg/builder"
	"github.com/LandSharkFive/DiskTwo/pkg/element"
)

// fakeSortedElements generates n elements with faker-sourced keys, then
// dedupes and sorts them so they satisfy BuildFromSorted's precondition.
func fakeSortedElements(t *testing.T, n int) []element.Element {
	t.Helper()
	seen := make(map[int32]bool)
	var elems []element.Element
	for len(elems) < n {
		var raw int32
		if err := faker.FakeData(&raw); err != nil {
			t.Fatalf("faker.FakeData: %v", err)
		}
		key := raw % 1_000_000
		if key < 0 {
			key = -key
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		elems = append(elems, element.New(key, key*7))
	}
	sort.Slice(elems, func(i, j int) bool { return elems[i].Key < elems[j].Key })
	return elems
}

func TestBuildFromSortedSmall(t *testing.T) {
	elems := []element.Element{
		element.New(1, 10), element.New(2, 20), element.New(3, 30),
		element.New(4, 40), element.New(5, 50), element.New(6, 60),
	}
	path := filepath.Join(t.TempDir(), "bulk.btr")
	tr, err := builder.BuildFromSorted(elems, path, builder.Options{Order: 4, Fill: 0.8})
	if err != nil {
		t.Fatalf("BuildFromSorted: %v", err)
	}
	defer tr.Close()

	for _, e := range elems {
		got, found, err := tr.TrySearch(e.Key)
		if err != nil || !found || got != e {
			t.Fatalf("TrySearch(%d) = %v, %v, %v, want %v", e.Key, got, found, err, e)
		}
	}
	keys := slices.Collect(tr.GetKeys())
	if !slices.IsSorted(keys) || len(keys) != len(elems) {
		t.Fatalf("GetKeys() = %v, want a sorted permutation of %d keys", keys, len(elems))
	}
}

func TestBuildFromSortedEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.btr")
	tr, err := builder.BuildFromSorted(nil, path, builder.Options{Order: 4, Fill: 0.8})
	if err != nil {
		t.Fatalf("BuildFromSorted(nil): %v", err)
	}
	defer tr.Close()
	if tr.RootID() != -1 {
		t.Fatalf("RootID() = %d, want -1 for an empty build", tr.RootID())
	}
}

func TestBuildFromSortedRejectsUnsortedInput(t *testing.T) {
	elems := []element.Element{element.New(5, 0), element.New(3, 0)}
	path := filepath.Join(t.TempDir(), "bad.btr")
	if _, err := builder.BuildFromSorted(elems, path, builder.Options{Order: 4, Fill: 0.8}); err == nil {
		t.Fatal("expected an error for a non-increasing input")
	}
}

func TestBuildFromSortedRejectsDuplicateKeys(t *testing.T) {
	elems := []element.Element{element.New(1, 0), element.New(1, 1)}
	path := filepath.Join(t.TempDir(), "dup.btr")
	if _, err := builder.BuildFromSorted(elems, path, builder.Options{Order: 4, Fill: 0.8}); err == nil {
		t.Fatal("expected an error for duplicate keys")
	}
}

// S6-style growth: bulk-load a large faker-generated set, then confirm
// further sequential inserts still land correctly on top of the bulk base.
func TestBuildThenGrow(t *testing.T) {
	elems := fakeSortedElements(t, 500)
	path := filepath.Join(t.TempDir(), "grow.btr")
	tr, err := builder.BuildFromSorted(elems, path, builder.Options{Order: 32, Fill: 0.7})
	if err != nil {
		t.Fatalf("BuildFromSorted: %v", err)
	}
	defer tr.Close()

	rng := rand.New(rand.NewSource(11))
	present := make(map[int32]bool)
	for _, e := range elems {
		present[e.Key] = true
	}
	added := 0
	for added < 200 {
		key := rng.Int31n(2_000_000)
		if present[key] {
			continue
		}
		present[key] = true
		if err := tr.InsertKV(key, key*3); err != nil {
			t.Fatalf("InsertKV(%d): %v", key, err)
		}
		added++
	}

	keys := slices.Collect(tr.GetKeys())
	if !slices.IsSorted(keys) {
		t.Fatalf("GetKeys() not sorted after growth")
	}
	if len(keys) != len(present) {
		t.Fatalf("GetKeys() len = %d, want %d", len(keys), len(present))
	}
}

func TestBuildRejectsBadFill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badfill.btr")
	if _, err := builder.BuildFromSorted(nil, path, builder.Options{Order: 4, Fill: 0.1}); err == nil {
		t.Fatal("expected an error for a fill factor below MinFill")
	}
}
