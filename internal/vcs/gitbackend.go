// This file contains the go-git implementation of the Backend capability.
// Repositories are stored as bare git repositories inside a billy
// filesystem root, one directory per repository id. Commits are built at
// the plumbing level (blob, tree, commit objects) and published with a
// check-and-set reference update so a stale parent is always rejected.
package vcs

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const bareRepoSuffix = ".git"

// GitBackend implements Backend on top of go-git bare repositories.
// It holds no per-repository state: every call opens the repository
// fresh, so concurrent invocations only meet at the reference update.
type GitBackend struct {
	root billy.Filesystem
}

// NewGitBackend constructs a GitBackend storing bare repositories under
// the given filesystem root (OS or in-memory).
func NewGitBackend(root billy.Filesystem) *GitBackend {
	return &GitBackend{root: root}
}

// BranchHead returns the commit id at the tip of the branch.
func (b *GitBackend) BranchHead(ctx context.Context, repoID, branch string) (string, error) {
	repo, err := b.openRepo(repoID)
	if err != nil {
		return "", err
	}

	ref, err := b.branchRef(repo, branch)
	if err != nil {
		return "", err
	}

	return ref.Hash().String(), nil
}

// ListRootFiles returns the regular files at the root of the branch's
// current tree, sorted by path. Nested directories are listed as neither
// files nor descended into, matching the synchronizer's root-only scope.
func (b *GitBackend) ListRootFiles(ctx context.Context, repoID, branch string) ([]string, error) {
	repo, err := b.openRepo(repoID)
	if err != nil {
		return nil, err
	}

	ref, err := b.branchRef(repo, branch)
	if err != nil {
		return nil, err
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, WrapErrorf(err, "loading head commit %s", ref.Hash())
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, WrapError(err, "loading root tree")
	}

	var paths []string
	for _, entry := range tree.Entries {
		if entry.Mode.IsFile() {
			paths = append(paths, entry.Name)
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// CreateCommit applies the request as a single commit on the branch.
//
// The branch reference is updated with check-and-set against the parent
// hash, so two racing writers cannot both land: the loser receives
// ErrStaleParent and no tree mutation occurs.
func (b *GitBackend) CreateCommit(ctx context.Context, repoID, branch string, req CommitRequest) (string, error) {
	if err := validateCommitRequest(req); err != nil {
		return "", err
	}

	repo, err := b.openRepo(repoID)
	if err != nil {
		return "", err
	}

	ref, err := b.branchRef(repo, branch)
	if err != nil {
		return "", err
	}

	parentHash := plumbing.NewHash(req.Parent)
	if ref.Hash() != parentHash {
		return "", WrapErrorf(ErrStaleParent, "branch %s is at %s, expected %s", branch, ref.Hash(), req.Parent)
	}

	parent, err := repo.CommitObject(parentHash)
	if err != nil {
		return "", WrapErrorf(err, "loading parent commit %s", req.Parent)
	}

	baseTree, err := parent.Tree()
	if err != nil {
		return "", WrapError(err, "loading parent tree")
	}

	changes := newTreeChanges()
	for _, put := range req.Puts {
		blobHash, blobErr := writeBlob(repo, put.Content)
		if blobErr != nil {
			return "", WrapErrorf(blobErr, "writing blob for %q", put.Path)
		}
		changes.addPut(put.Path, blobHash)
	}
	for _, path := range req.Deletes {
		changes.addDelete(path)
	}

	treeHash, _, err := rewriteTree(repo, baseTree, changes)
	if err != nil {
		return "", WrapError(err, "building new tree")
	}

	when := req.Author.When
	if when.IsZero() {
		when = time.Now()
	}
	sig := object.Signature{Name: req.Author.Name, Email: req.Author.Email, When: when}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      req.Message,
		TreeHash:     treeHash,
		ParentHashes: []plumbing.Hash{parentHash},
	}

	obj := repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return "", WrapError(err, "encoding commit")
	}

	commitHash, err := repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", WrapError(err, "storing commit")
	}

	refName := plumbing.NewBranchReferenceName(branch)
	newRef := plumbing.NewHashReference(refName, commitHash)
	oldRef := plumbing.NewHashReference(refName, parentHash)

	if err := repo.Storer.CheckAndSetReference(newRef, oldRef); err != nil {
		if errors.Is(err, storage.ErrReferenceHasChanged) {
			return "", WrapErrorf(ErrStaleParent, "branch %s moved during commit", branch)
		}
		return "", WrapError(err, "updating branch reference")
	}

	return commitHash.String(), nil
}

// InitRepo creates a new bare repository with an empty initial commit on
// the given branch and returns the initial commit id. Synchronization
// never creates repositories on demand; this is an explicit provisioning
// primitive.
func (b *GitBackend) InitRepo(ctx context.Context, repoID, branch string, author Signature, message string) (string, error) {
	if err := validateRepoID(repoID); err != nil {
		return "", err
	}
	if branch == "" {
		return "", WrapError(ErrInvalidRequest, "branch name cannot be empty")
	}

	dir := repoID + bareRepoSuffix
	if _, err := b.root.Stat(dir); err == nil {
		return "", WrapErrorf(ErrRepoExists, "repository %q", repoID)
	}

	if err := b.root.MkdirAll(dir, 0o755); err != nil {
		return "", WrapErrorf(err, "creating repository directory %q", dir)
	}

	repoFS, err := b.root.Chroot(dir)
	if err != nil {
		return "", WrapErrorf(err, "entering repository directory %q", dir)
	}

	storer := filesystem.NewStorage(repoFS, cache.NewObjectLRUDefault())
	repo, err := git.Init(storer, nil)
	if err != nil {
		return "", WrapErrorf(err, "initializing repository %q", repoID)
	}

	emptyTree := &object.Tree{}
	treeObj := repo.Storer.NewEncodedObject()
	if err := emptyTree.Encode(treeObj); err != nil {
		return "", WrapError(err, "encoding empty tree")
	}
	treeHash, err := repo.Storer.SetEncodedObject(treeObj)
	if err != nil {
		return "", WrapError(err, "storing empty tree")
	}

	when := author.When
	if when.IsZero() {
		when = time.Now()
	}
	sig := object.Signature{Name: author.Name, Email: author.Email, When: when}

	commit := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   message,
		TreeHash:  treeHash,
	}

	commitObj := repo.Storer.NewEncodedObject()
	if err := commit.Encode(commitObj); err != nil {
		return "", WrapError(err, "encoding initial commit")
	}
	commitHash, err := repo.Storer.SetEncodedObject(commitObj)
	if err != nil {
		return "", WrapError(err, "storing initial commit")
	}

	refName := plumbing.NewBranchReferenceName(branch)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(refName, commitHash)); err != nil {
		return "", WrapErrorf(err, "creating branch %q", branch)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, refName)); err != nil {
		return "", WrapError(err, "pointing HEAD at branch")
	}

	return commitHash.String(), nil
}

// openRepo opens the bare repository for repoID.
func (b *GitBackend) openRepo(repoID string) (*git.Repository, error) {
	if err := validateRepoID(repoID); err != nil {
		return nil, err
	}

	dir := repoID + bareRepoSuffix
	if _, err := b.root.Stat(dir); err != nil {
		return nil, WrapErrorf(ErrRepoNotFound, "repository %q", repoID)
	}

	repoFS, err := b.root.Chroot(dir)
	if err != nil {
		return nil, WrapErrorf(err, "entering repository directory %q", dir)
	}

	storer := filesystem.NewStorage(repoFS, cache.NewObjectLRUDefault())
	repo, err := git.Open(storer, nil)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, WrapErrorf(ErrRepoNotFound, "repository %q", repoID)
		}
		return nil, WrapErrorf(err, "opening repository %q", repoID)
	}

	return repo, nil
}

// branchRef resolves the branch to its hash reference.
func (b *GitBackend) branchRef(repo *git.Repository, branch string) (*plumbing.Reference, error) {
	if branch == "" {
		return nil, WrapError(ErrBranchNotFound, "branch name cannot be empty")
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, WrapErrorf(ErrBranchNotFound, "branch %q", branch)
		}
		return nil, WrapErrorf(err, "resolving branch %q", branch)
	}

	return ref, nil
}

func validateRepoID(repoID string) error {
	if repoID == "" {
		return WrapError(ErrInvalidRequest, "repository id cannot be empty")
	}
	if strings.HasPrefix(repoID, "/") || strings.Contains(repoID, "..") {
		return WrapErrorf(ErrInvalidRequest, "illegal repository id %q", repoID)
	}
	return nil
}

func validateCommitRequest(req CommitRequest) error {
	if !plumbing.IsHash(req.Parent) {
		return WrapErrorf(ErrInvalidRequest, "parent %q is not a commit id", req.Parent)
	}
	if req.Author.Name == "" || req.Author.Email == "" {
		return WrapError(ErrInvalidRequest, "author name and email are required")
	}
	if req.Message == "" {
		return WrapError(ErrInvalidRequest, "commit message cannot be empty")
	}
	for _, put := range req.Puts {
		if err := validatePath(put.Path); err != nil {
			return err
		}
	}
	for _, path := range req.Deletes {
		if err := validatePath(path); err != nil {
			return err
		}
	}
	return nil
}

func validatePath(path string) error {
	if path == "" {
		return WrapError(ErrInvalidRequest, "file path cannot be empty")
	}
	if strings.HasPrefix(path, "/") || strings.Contains(path, "..") {
		return WrapErrorf(ErrInvalidRequest, "illegal file path %q", path)
	}
	return nil
}

// writeBlob stores content as a blob object and returns its hash.
func writeBlob(repo *git.Repository, content []byte) (plumbing.Hash, error) {
	obj := repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}

	return repo.Storer.SetEncodedObject(obj)
}

// treeChanges groups put/delete instructions by directory level so the
// root tree can be rewritten recursively.
type treeChanges struct {
	puts    map[string]plumbing.Hash
	deletes map[string]struct{}
	nested  map[string]*treeChanges
}

func newTreeChanges() *treeChanges {
	return &treeChanges{
		puts:    make(map[string]plumbing.Hash),
		deletes: make(map[string]struct{}),
		nested:  make(map[string]*treeChanges),
	}
}

func (tc *treeChanges) child(name string) *treeChanges {
	sub, ok := tc.nested[name]
	if !ok {
		sub = newTreeChanges()
		tc.nested[name] = sub
	}
	return sub
}

func (tc *treeChanges) addPut(path string, blob plumbing.Hash) {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		tc.child(path[:i]).addPut(path[i+1:], blob)
		return
	}
	tc.puts[path] = blob
}

func (tc *treeChanges) addDelete(path string) {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		tc.child(path[:i]).addDelete(path[i+1:])
		return
	}
	tc.deletes[path] = struct{}{}
}

// rewriteTree builds a new tree from base with the changes applied and
// stores it. It returns the tree hash and its entry count; a directory
// whose rewritten tree ends up empty is dropped from its parent.
func rewriteTree(repo *git.Repository, base *object.Tree, tc *treeChanges) (plumbing.Hash, int, error) {
	entries := make(map[string]object.TreeEntry)
	if base != nil {
		for _, entry := range base.Entries {
			entries[entry.Name] = entry
		}
	}

	for name := range tc.deletes {
		delete(entries, name)
	}
	for name, blob := range tc.puts {
		entries[name] = object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: blob}
	}

	for name, sub := range tc.nested {
		var baseSub *object.Tree
		if entry, ok := entries[name]; ok && entry.Mode == filemode.Dir {
			t, err := repo.TreeObject(entry.Hash)
			if err != nil {
				return plumbing.ZeroHash, 0, WrapErrorf(err, "loading subtree %q", name)
			}
			baseSub = t
		}

		subHash, count, err := rewriteTree(repo, baseSub, sub)
		if err != nil {
			return plumbing.ZeroHash, 0, err
		}
		if count == 0 {
			delete(entries, name)
			continue
		}
		entries[name] = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: subHash}
	}

	sorted := make([]object.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		sorted = append(sorted, entry)
	}
	// Canonical git tree order: directories sort as "name/".
	sort.Slice(sorted, func(i, j int) bool {
		return treeSortKey(sorted[i]) < treeSortKey(sorted[j])
	})

	tree := &object.Tree{Entries: sorted}
	obj := repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, 0, WrapError(err, "encoding tree")
	}

	hash, err := repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, 0, WrapError(err, "storing tree")
	}

	return hash, len(sorted), nil
}

func treeSortKey(entry object.TreeEntry) string {
	if entry.Mode == filemode.Dir {
		return entry.Name + "/"
	}
	return entry.Name
}
