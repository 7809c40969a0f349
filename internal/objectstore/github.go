package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

// contentsAPI is the subset of the GitHub repository contents API in use.
type contentsAPI interface {
	CreateFile(ctx context.Context, owner, repo, path string, opts *gogithub.RepositoryContentFileOptions) (*gogithub.RepositoryContentResponse, *gogithub.Response, error)
	UpdateFile(ctx context.Context, owner, repo, path string, opts *gogithub.RepositoryContentFileOptions) (*gogithub.RepositoryContentResponse, *gogithub.Response, error)
	GetContents(ctx context.Context, owner, repo, path string, opts *gogithub.RepositoryContentGetOptions) (*gogithub.RepositoryContent, []*gogithub.RepositoryContent, *gogithub.Response, error)
	DeleteFile(ctx context.Context, owner, repo, path string, opts *gogithub.RepositoryContentFileOptions) (*gogithub.RepositoryContentResponse, *gogithub.Response, error)
}

// GitHubBackend stores objects as files in a public GitHub repository and
// serves them through raw.githubusercontent.com.
type GitHubBackend struct {
	contents contentsAPI
	owner    string
	repo     string
	branch   string
}

// NewGitHubBackend creates a backend using a static access token.
func NewGitHubBackend(token, owner, repo, branch string) *GitHubBackend {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return newGitHubBackend(gogithub.NewClient(tc).Repositories, owner, repo, branch)
}

func newGitHubBackend(contents contentsAPI, owner, repo, branch string) *GitHubBackend {
	if branch == "" {
		branch = "main"
	}
	return &GitHubBackend{contents: contents, owner: owner, repo: repo, branch: branch}
}

// Put creates the file, falling back to an update when it already exists.
func (b *GitHubBackend) Put(ctx context.Context, key, contentType string, data []byte) error {
	opts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.String("upload " + key),
		Content: data,
		Branch:  gogithub.String(b.branch),
	}
	_, _, err := b.contents.CreateFile(ctx, b.owner, b.repo, key, opts)
	if err == nil {
		return nil
	}
	if !isStatus(err, http.StatusUnprocessableEntity) {
		return err
	}

	existing, _, _, getErr := b.contents.GetContents(ctx, b.owner, b.repo, key, &gogithub.RepositoryContentGetOptions{Ref: b.branch})
	if getErr != nil {
		return getErr
	}
	if existing == nil {
		return fmt.Errorf("github backend: %s is a directory", key)
	}
	opts.SHA = existing.SHA
	_, _, err = b.contents.UpdateFile(ctx, b.owner, b.repo, key, opts)
	return err
}

// MakePublic is a no-op: files in a public repository are readable once
// committed. The commit itself is verified so an unreadable object still
// surfaces as a visibility failure.
func (b *GitHubBackend) MakePublic(ctx context.Context, key string) error {
	file, _, _, err := b.contents.GetContents(ctx, b.owner, b.repo, key, &gogithub.RepositoryContentGetOptions{Ref: b.branch})
	if err != nil {
		return err
	}
	if file == nil {
		return fmt.Errorf("github backend: %s not found after commit", key)
	}
	return nil
}

func (b *GitHubBackend) PublicURL(key string) string {
	base := strings.Join([]string{"https://raw.githubusercontent.com", b.owner, b.repo, b.branch}, "/")
	return joinURL(base, key)
}

// Delete removes a file from the storage repo. Missing files are ignored.
func (b *GitHubBackend) Delete(ctx context.Context, key string) error {
	contents, _, _, err := b.contents.GetContents(ctx, b.owner, b.repo, key, &gogithub.RepositoryContentGetOptions{Ref: b.branch})
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil
		}
		return err
	}
	if contents == nil {
		return nil
	}
	opts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.String("reclaim " + key),
		SHA:     contents.SHA,
		Branch:  gogithub.String(b.branch),
	}
	_, _, err = b.contents.DeleteFile(ctx, b.owner, b.repo, key, opts)
	return err
}

func isStatus(err error, status int) bool {
	var ghErr *gogithub.ErrorResponse
	if !errors.As(err, &ghErr) {
		return false
	}
	return ghErr.Response != nil && ghErr.Response.StatusCode == status
}
