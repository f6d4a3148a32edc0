package treesync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gitdrop/gitdrop/internal/vcs"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name        string
		current     []string
		desired     map[string][]byte
		wantPuts    []vcs.Put
		wantDeletes []string
	}{
		{
			name:    "empty tree gains files",
			current: nil,
			desired: map[string][]byte{
				"a.txt": []byte("a"),
				"b.txt": []byte("b"),
			},
			wantPuts: []vcs.Put{
				{Path: "a.txt", Content: []byte("a")},
				{Path: "b.txt", Content: []byte("b")},
			},
		},
		{
			name:        "removed file is deleted exactly once",
			current:     []string{"gone.txt", "kept.txt"},
			desired:     map[string][]byte{"kept.txt": []byte("v2")},
			wantPuts:    []vcs.Put{{Path: "kept.txt", Content: []byte("v2")}},
			wantDeletes: []string{"gone.txt"},
		},
		{
			name:    "empty content is excluded from puts and deleted if present",
			current: []string{"a.txt", "b.txt"},
			desired: map[string][]byte{
				"a.txt": []byte("hello"),
				"b.txt": {},
				"c.txt": []byte("world"),
			},
			wantPuts: []vcs.Put{
				{Path: "a.txt", Content: []byte("hello")},
				{Path: "c.txt", Content: []byte("world")},
			},
			wantDeletes: []string{"b.txt"},
		},
		{
			name:    "empty content for a new path produces no change",
			current: []string{"a.txt"},
			desired: map[string][]byte{
				"a.txt":   []byte("a"),
				"new.txt": nil,
			},
			wantPuts: []vcs.Put{{Path: "a.txt", Content: []byte("a")}},
		},
		{
			name:        "empty desired set deletes everything",
			current:     []string{"a.txt", "b.txt"},
			desired:     map[string][]byte{},
			wantDeletes: []string{"a.txt", "b.txt"},
		},
		{
			name:    "no changes at all",
			current: nil,
			desired: map[string][]byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.current, tt.desired)
			assert.Equal(t, tt.wantPuts, got.Puts)
			assert.Equal(t, tt.wantDeletes, got.Deletes)
		})
	}
}

func TestPlanPathNeverInBothSets(t *testing.T) {
	current := []string{"a.txt", "b.txt", "c.txt"}
	desired := map[string][]byte{
		"a.txt": []byte("a"),
		"b.txt": {},
		"d.txt": []byte("d"),
	}

	got := Plan(current, desired)

	deleted := make(map[string]bool, len(got.Deletes))
	for _, path := range got.Deletes {
		deleted[path] = true
	}
	for _, put := range got.Puts {
		assert.False(t, deleted[put.Path], "path %q appears in both puts and deletes", put.Path)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	current := []string{"z.txt", "a.txt", "m.txt"}
	desired := map[string][]byte{
		"b.txt": []byte("b"),
		"y.txt": []byte("y"),
		"k.txt": []byte("k"),
	}

	first := Plan(current, desired)
	second := Plan(current, desired)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a.txt", "m.txt", "z.txt"}, first.Deletes)
	assert.Equal(t, "b.txt", first.Puts[0].Path)
	assert.Equal(t, "k.txt", first.Puts[1].Path)
	assert.Equal(t, "y.txt", first.Puts[2].Path)
}
