// Package checkout maintains the source working copy with go-git.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/vigiglobe/mesos-deb-packaging/internal/locator"
	"github.com/vigiglobe/mesos-deb-packaging/internal/logging"
	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

// Result describes the working copy after a checkout.
type Result struct {
	Dir    string
	Commit string
	Cloned bool
}

type Checkouter interface {
	Checkout(ctx context.Context, ref locator.SourceRef, dir string) (Result, error)
}

// GitCheckouter clones once and afterwards fetches into the same working
// copy.
type GitCheckouter struct {
	// Auth picks credentials for a remote URL. Nil means anonymous.
	Auth func(url string) transport.AuthMethod
}

func New() *GitCheckouter {
	return &GitCheckouter{Auth: authFromEnv}
}

func (g *GitCheckouter) authFor(url string) transport.AuthMethod {
	if g.Auth == nil {
		return nil
	}
	return g.Auth(url)
}

// Checkout clones ref.RepositoryURL into dir unless a working copy is already
// there, then force-checks out the selector. An empty selector leaves the
// default branch checked out.
func (g *GitCheckouter) Checkout(ctx context.Context, ref locator.SourceRef, dir string) (Result, error) {
	logger := logging.From(ctx)
	res := Result{Dir: dir}

	if utils.GetExecOptions(ctx).DryRun {
		logger.Info("⚡ [dry-run] checkout", "url", ref.RepositoryURL, "selector", ref.RevisionSelector, "dir", dir)
		return res, nil
	}

	repo, err := git.PlainOpen(dir)
	switch {
	case err == nil:
		logger.Info("Updating working copy", "dir", dir)
		if err := g.fetch(ctx, repo, ref.RepositoryURL); err != nil {
			return res, gitError("fetch", err)
		}
	case errors.Is(err, git.ErrRepositoryNotExists):
		logger.Info("Cloning", "url", ref.RepositoryURL, "dir", dir)
		repo, err = g.clone(ctx, ref.RepositoryURL, dir)
		if err != nil {
			return res, gitError("clone", err)
		}
		res.Cloned = true
	default:
		return res, gitError("open", err)
	}

	if ref.HasSelector() {
		hash, err := ResolveSelector(repo, ref.RevisionSelector)
		if err != nil {
			return res, gitError("rev-parse", err)
		}
		wt, err := repo.Worktree()
		if err != nil {
			return res, gitError("worktree", err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
			return res, gitError("checkout", err)
		}
	}

	head, err := repo.Head()
	if err != nil {
		return res, gitError("rev-parse", err)
	}
	res.Commit = head.Hash().String()
	logger.Debug("Checked out", "commit", res.Commit)
	return res, nil
}

func (g *GitCheckouter) clone(ctx context.Context, url, dir string) (*git.Repository, error) {
	_, statErr := os.Stat(dir)
	existed := statErr == nil
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, err
	}
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:  url,
		Auth: g.authFor(url),
		Tags: git.AllTags,
	})
	if err != nil {
		// a partial clone would be opened as a working copy next run
		if !existed {
			_ = os.RemoveAll(dir)
		}
		return nil, err
	}
	return repo, nil
}

func (g *GitCheckouter) fetch(ctx context.Context, repo *git.Repository, url string) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		Auth:  g.authFor(url),
		Tags:  git.AllTags,
		Force: true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

// ResolveSelector finds the commit a selector names: a remote branch, a
// tag, a local branch, then any revision go-git can parse (hashes,
// abbreviated hashes, HEAD~1).
func ResolveSelector(repo *git.Repository, sel string) (plumbing.Hash, error) {
	candidates := []plumbing.ReferenceName{
		plumbing.NewRemoteReferenceName("origin", sel),
		plumbing.NewTagReferenceName(sel),
		plumbing.NewBranchReferenceName(sel),
	}
	for _, name := range candidates {
		ref, err := repo.Reference(name, true)
		if err != nil {
			continue
		}
		// annotated tags point at a tag object, not the commit
		if tag, err := repo.TagObject(ref.Hash()); err == nil {
			return tag.Target, nil
		}
		return ref.Hash(), nil
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(sel))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("revision %q not found: %w", sel, err)
	}
	return *hash, nil
}

func gitError(op string, err error) error {
	return &utils.ToolError{Name: "git", Args: []string{op}, ExitCode: 1, Err: err}
}

// authFromEnv uses a token from the environment for HTTP(S) remotes and the
// first usable SSH key for everything else. Public repositories need
// neither.
func authFromEnv(url string) transport.AuthMethod {
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return nil
	}
	switch ep.Protocol {
	case "http", "https":
		return tokenAuth()
	case "ssh":
		return sshKeyAuth()
	default:
		return nil
	}
}

func tokenAuth() transport.AuthMethod {
	for _, env := range []struct{ key, user string }{
		{"GITHUB_TOKEN", "x-access-token"},
		{"GIT_TOKEN", "git"},
	} {
		if token := os.Getenv(env.key); token != "" {
			return &http.BasicAuth{Username: env.user, Password: token}
		}
	}
	return nil
}

func sshKeyAuth() transport.AuthMethod {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	for _, key := range []string{"id_ed25519", "id_rsa"} {
		path := filepath.Join(home, ".ssh", key)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		auth, err := ssh.NewPublicKeysFromFile("git", path, "")
		if err != nil {
			log.Debug("Skipping unusable SSH key", "path", path, "err", err)
			continue
		}
		return auth
	}
	return nil
}
