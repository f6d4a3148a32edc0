package vcs

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuthor = Signature{
	Name:  "gitdrop",
	Email: "gitdrop@localhost",
	When:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
}

func newTestBackend(t *testing.T) (*GitBackend, context.Context) {
	t.Helper()
	return NewGitBackend(memfs.New()), context.Background()
}

// seedRepo provisions a bare repository with an empty initial commit and
// returns its head commit id.
func seedRepo(t *testing.T, b *GitBackend, ctx context.Context, repoID string) string {
	t.Helper()

	head, err := b.InitRepo(ctx, repoID, "main", testAuthor, "Initial commit")
	require.NoError(t, err)
	require.NotEmpty(t, head)
	return head
}

// commitFiles lands one commit with the given puts and deletes on main
// and returns the new head.
func commitFiles(
	t *testing.T,
	b *GitBackend,
	ctx context.Context,
	repoID, parent string,
	puts []Put,
	deletes []string,
) string {
	t.Helper()

	id, err := b.CreateCommit(ctx, repoID, "main", CommitRequest{
		Parent:  parent,
		Puts:    puts,
		Deletes: deletes,
		Author:  testAuthor,
		Message: "Synchronized uploaded archive",
	})
	require.NoError(t, err)
	return id
}

// readFile returns the content of path at the branch head.
func readFile(t *testing.T, b *GitBackend, repoID, branch, path string) (string, error) {
	t.Helper()

	repo, err := b.openRepo(repoID)
	require.NoError(t, err)

	ref, err := b.branchRef(repo, branch)
	require.NoError(t, err)

	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)

	file, err := commit.File(path)
	if err != nil {
		return "", err
	}
	return file.Contents()
}

func TestInitRepo(t *testing.T) {
	b, ctx := newTestBackend(t)

	head, err := b.InitRepo(ctx, "alice-site", "main", testAuthor, "Initial commit")
	require.NoError(t, err)

	got, err := b.BranchHead(ctx, "alice-site", "main")
	require.NoError(t, err)
	assert.Equal(t, head, got)

	files, err := b.ListRootFiles(ctx, "alice-site", "main")
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = b.InitRepo(ctx, "alice-site", "main", testAuthor, "Initial commit")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRepoExists)
}

func TestBranchHeadErrors(t *testing.T) {
	b, ctx := newTestBackend(t)
	seedRepo(t, b, ctx, "alice-site")

	tests := []struct {
		name    string
		repoID  string
		branch  string
		wantErr error
	}{
		{name: "missing repository", repoID: "nobody-site", branch: "main", wantErr: ErrRepoNotFound},
		{name: "missing branch", repoID: "alice-site", branch: "develop", wantErr: ErrBranchNotFound},
		{name: "empty branch", repoID: "alice-site", branch: "", wantErr: ErrBranchNotFound},
		{name: "empty repository id", repoID: "", branch: "main", wantErr: ErrInvalidRequest},
		{name: "traversal repository id", repoID: "../etc", branch: "main", wantErr: ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.BranchHead(ctx, tt.repoID, tt.branch)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateCommitPutsAndDeletes(t *testing.T) {
	b, ctx := newTestBackend(t)
	head := seedRepo(t, b, ctx, "alice-site")

	head = commitFiles(t, b, ctx, "alice-site", head, []Put{
		{Path: "index.html", Content: []byte("<h1>hi</h1>")},
		{Path: "style.css", Content: []byte("body{}")},
	}, nil)

	files, err := b.ListRootFiles(ctx, "alice-site", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html", "style.css"}, files)

	// Replace one file, delete the other.
	head = commitFiles(t, b, ctx, "alice-site", head, []Put{
		{Path: "index.html", Content: []byte("<h1>bye</h1>")},
	}, []string{"style.css"})

	files, err = b.ListRootFiles(ctx, "alice-site", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html"}, files)

	content, err := readFile(t, b, "alice-site", "main", "index.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>bye</h1>", content)

	got, err := b.BranchHead(ctx, "alice-site", "main")
	require.NoError(t, err)
	assert.Equal(t, head, got)
}

func TestCreateCommitNestedPut(t *testing.T) {
	b, ctx := newTestBackend(t)
	head := seedRepo(t, b, ctx, "alice-site")

	commitFiles(t, b, ctx, "alice-site", head, []Put{
		{Path: "docs/guide.md", Content: []byte("# guide")},
		{Path: "readme.md", Content: []byte("root")},
	}, nil)

	// Root listing only surfaces root-level regular files.
	files, err := b.ListRootFiles(ctx, "alice-site", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"readme.md"}, files)

	content, err := readFile(t, b, "alice-site", "main", "docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, "# guide", content)
}

func TestCreateCommitDropsEmptiedDirectory(t *testing.T) {
	b, ctx := newTestBackend(t)
	head := seedRepo(t, b, ctx, "alice-site")

	head = commitFiles(t, b, ctx, "alice-site", head, []Put{
		{Path: "docs/guide.md", Content: []byte("# guide")},
	}, nil)

	commitFiles(t, b, ctx, "alice-site", head, nil, []string{"docs/guide.md"})

	_, err := readFile(t, b, "alice-site", "main", "docs/guide.md")
	require.Error(t, err, "deleted nested file must be gone")
}

func TestCreateCommitStaleParent(t *testing.T) {
	b, ctx := newTestBackend(t)
	parent := seedRepo(t, b, ctx, "alice-site")

	// First writer wins the race.
	commitFiles(t, b, ctx, "alice-site", parent, []Put{
		{Path: "winner.txt", Content: []byte("first")},
	}, nil)

	// Second writer committed against the same, now stale, parent.
	_, err := b.CreateCommit(ctx, "alice-site", "main", CommitRequest{
		Parent:  parent,
		Puts:    []Put{{Path: "loser.txt", Content: []byte("second")}},
		Author:  testAuthor,
		Message: "Synchronized uploaded archive",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleParent)

	// The losing commit must leave the tree untouched.
	files, err := b.ListRootFiles(ctx, "alice-site", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"winner.txt"}, files)
}

func TestCreateCommitValidation(t *testing.T) {
	b, ctx := newTestBackend(t)
	head := seedRepo(t, b, ctx, "alice-site")

	valid := CommitRequest{
		Parent:  head,
		Puts:    []Put{{Path: "a.txt", Content: []byte("a")}},
		Author:  testAuthor,
		Message: "Synchronized uploaded archive",
	}

	tests := []struct {
		name   string
		mutate func(req *CommitRequest)
	}{
		{
			name:   "malformed parent",
			mutate: func(req *CommitRequest) { req.Parent = "not-a-hash" },
		},
		{
			name:   "empty parent",
			mutate: func(req *CommitRequest) { req.Parent = "" },
		},
		{
			name:   "missing author",
			mutate: func(req *CommitRequest) { req.Author = Signature{} },
		},
		{
			name:   "empty message",
			mutate: func(req *CommitRequest) { req.Message = "" },
		},
		{
			name:   "absolute put path",
			mutate: func(req *CommitRequest) { req.Puts = []Put{{Path: "/etc/passwd", Content: []byte("x")}} },
		},
		{
			name:   "traversal delete path",
			mutate: func(req *CommitRequest) { req.Deletes = []string{"../escape"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			_, err := b.CreateCommit(ctx, "alice-site", "main", req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestCreateCommitLinksParent(t *testing.T) {
	b, ctx := newTestBackend(t)
	parent := seedRepo(t, b, ctx, "alice-site")

	head := commitFiles(t, b, ctx, "alice-site", parent, []Put{
		{Path: "a.txt", Content: []byte("a")},
	}, nil)

	repo, err := b.openRepo("alice-site")
	require.NoError(t, err)

	ref, err := b.branchRef(repo, "main")
	require.NoError(t, err)
	require.Equal(t, head, ref.Hash().String())

	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	require.Len(t, commit.ParentHashes, 1)
	assert.Equal(t, parent, commit.ParentHashes[0].String())
	assert.Equal(t, testAuthor.Name, commit.Author.Name)
	assert.Equal(t, testAuthor.Email, commit.Author.Email)
}
