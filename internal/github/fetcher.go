package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"
)

// FetchedDoc is one markdown file pulled from a repository.
type FetchedDoc struct {
	Path    string // Relative path within the base directory
	Content string // Full markdown content
	SHA     string // File's Git blob SHA
	URL     string // GitHub raw URL
}

// Fetcher lists and downloads markdown files from one repository
// directory tree.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
}

// NewFetcher creates a fetcher rooted at owner/repo/basePath.
// An empty basePath means the repository root.
func NewFetcher(client *Client, owner, repo, basePath string) *Fetcher {
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
	}
}

// ListDocs recursively lists all markdown files under the base path.
func (f *Fetcher) ListDocs(ctx context.Context) ([]string, error) {
	return f.listRecursive(ctx, f.basePath, "")
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	var docs []string

	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}

		itemRelPath := path.Join(relativePath, *item.Name)

		switch *item.Type {
		case "file":
			if strings.HasSuffix(*item.Name, ".md") {
				docs = append(docs, itemRelPath)
			}
		case "dir":
			sub, err := f.listRecursive(ctx, path.Join(fullPath, *item.Name), itemRelPath)
			if err != nil {
				return nil, err
			}
			docs = append(docs, sub...)
		}
	}

	return docs, nil
}

// FetchDoc downloads the content of one markdown file.
func (f *Fetcher) FetchDoc(ctx context.Context, relativePath string) (*FetchedDoc, error) {
	fullPath := path.Join(f.basePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := base64.StdEncoding.DecodeString(*fileContent.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}

	rawURL := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/main/%s", f.owner, f.repo, fullPath)

	return &FetchedDoc{
		Path:    relativePath,
		Content: string(content),
		SHA:     *fileContent.SHA,
		URL:     rawURL,
	}, nil
}

// Repo returns the owner/repo identifier this fetcher reads from.
func (f *Fetcher) Repo() string {
	return f.owner + "/" + f.repo
}
