package checkout

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigiglobe/mesos-deb-packaging/internal/locator"
	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

func signature() *object.Signature {
	return &object.Signature{Name: "Builder", Email: "builder@example.com", When: time.Now()}
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	h, err := wt.Commit("update "+name, &git.CommitOptions{Author: signature()})
	require.NoError(t, err)
	return h
}

// sourceRepo builds a repository with a lightweight tag 0.20.0 on the first
// commit, an annotated tag 0.21.0 on the second and a branch "stable"
// pointing at the first.
func sourceRepo(t *testing.T) (string, *git.Repository, plumbing.Hash, plumbing.Hash) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	first := commitFile(t, repo, dir, "configure.ac", "AC_INIT([mesos], [0.20.0])\n")
	_, err = repo.CreateTag("0.20.0", first, nil)
	require.NoError(t, err)

	second := commitFile(t, repo, dir, "configure.ac", "AC_INIT([mesos], [0.21.0])\n")
	_, err = repo.CreateTag("0.21.0", second, &git.CreateTagOptions{Tagger: signature(), Message: "0.21.0"})
	require.NoError(t, err)

	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("stable"), first)))
	return dir, repo, first, second
}

func TestResolveSelector(t *testing.T) {
	_, repo, first, second := sourceRepo(t)

	cases := map[string]plumbing.Hash{
		"0.20.0":        first,
		"0.21.0":        second,
		"stable":        first,
		second.String(): second,
		"HEAD":          second,
	}
	for sel, want := range cases {
		got, err := ResolveSelector(repo, sel)
		require.NoError(t, err, sel)
		assert.Equal(t, want, got, sel)
	}

	_, err := ResolveSelector(repo, "0.99.0")
	assert.Error(t, err)
}

func TestCheckoutClonesThenReuses(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("local clones need git-upload-pack")
	}
	src, _, first, second := sourceRepo(t)
	dst := filepath.Join(t.TempDir(), "mesos")
	g := &GitCheckouter{}
	ctx := context.Background()

	res, err := g.Checkout(ctx, locator.SourceRef{RepositoryURL: src, RevisionSelector: "0.20.0"}, dst)
	require.NoError(t, err)
	assert.True(t, res.Cloned)
	assert.Equal(t, first.String(), res.Commit)

	// local edits are discarded by the forced checkout
	require.NoError(t, os.WriteFile(filepath.Join(dst, "configure.ac"), []byte("dirty\n"), 0o644))

	res, err = g.Checkout(ctx, locator.SourceRef{RepositoryURL: src, RevisionSelector: "0.21.0"}, dst)
	require.NoError(t, err)
	assert.False(t, res.Cloned, "an existing working copy is not cloned again")
	assert.Equal(t, second.String(), res.Commit)

	data, err := os.ReadFile(filepath.Join(dst, "configure.ac"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "0.21.0")
}

func TestCheckoutUnknownSelector(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("local clones need git-upload-pack")
	}
	src, _, _, _ := sourceRepo(t)
	dst := filepath.Join(t.TempDir(), "mesos")

	_, err := (&GitCheckouter{}).Checkout(context.Background(), locator.SourceRef{RepositoryURL: src, RevisionSelector: "nope"}, dst)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrExternalTool))
	assert.Equal(t, 1, utils.ExitStatus(err))
}

func TestCheckoutMissingRemote(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "mesos")
	_, err := (&GitCheckouter{}).Checkout(context.Background(), locator.SourceRef{RepositoryURL: filepath.Join(t.TempDir(), "absent")}, dst)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrExternalTool))
	assert.NoDirExists(t, dst, "failed clones are removed")
}

func TestCheckoutDryRun(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "mesos")
	ctx := utils.WithExecOptions(context.Background(), utils.ExecOptions{DryRun: true})

	res, err := New().Checkout(ctx, locator.SourceRef{RepositoryURL: "https://github.com/apache/mesos", RevisionSelector: "0.22.0"}, dst)
	require.NoError(t, err)
	assert.Empty(t, res.Commit)
	assert.NoDirExists(t, dst)
}

func TestAuthFromEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "secret")
	assert.NotNil(t, authFromEnv("https://github.com/apache/mesos"))
	assert.Nil(t, authFromEnv("/srv/git/mesos"))
}
