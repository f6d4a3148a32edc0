// Package treesync computes and applies the minimal change set that makes
// a branch's tree match a desired file set, as one atomic commit.
package treesync

import (
	"sort"

	"github.com/gitdrop/gitdrop/internal/vcs"
)

// ChangeSet is the diff between the current tree and the desired file
// set: files to write and files to remove. A path never appears in both.
type ChangeSet struct {
	Puts    []vcs.Put
	Deletes []string
}

// Empty reports whether the change set carries no work.
func (c ChangeSet) Empty() bool {
	return len(c.Puts) == 0 && len(c.Deletes) == 0
}

// Plan computes the change set as a pure function of the current root
// listing and the desired file set.
//
// A desired entry with empty content is excluded from the puts and does
// not count as "kept": if the path exists in the current tree it is
// deleted. Current paths absent from the desired set are deleted. Both
// sequences are sorted so a plan is deterministic for a given input.
func Plan(current []string, desired map[string][]byte) ChangeSet {
	var cs ChangeSet

	for _, path := range current {
		if len(desired[path]) == 0 {
			cs.Deletes = append(cs.Deletes, path)
		}
	}

	for path, content := range desired {
		if len(content) == 0 {
			continue
		}
		cs.Puts = append(cs.Puts, vcs.Put{Path: path, Content: content})
	}

	sort.Strings(cs.Deletes)
	sort.Slice(cs.Puts, func(i, j int) bool { return cs.Puts[i].Path < cs.Puts[j].Path })

	return cs
}
