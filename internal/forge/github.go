package forge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/config"
	apperrors "git.home.luguber.info/inful/appbuilder/internal/errors"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
	"git.home.luguber.info/inful/appbuilder/internal/observability"
)

// GitHubClient implements the repository publisher against the GitHub API.
type GitHubClient struct {
	cfg        config.ForgeConfig
	httpClient *http.Client
	apiURL     string
	baseURL    string
	owner      string

	mu    sync.RWMutex
	token string
}

// NewGitHubClient creates a new GitHub publisher client.
func NewGitHubClient(cfg config.ForgeConfig) (*GitHubClient, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github client requires token authentication")
	}
	if cfg.Owner == "" {
		return nil, fmt.Errorf("github client requires an owner")
	}

	client := &GitHubClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     cfg.APIURL,
		baseURL:    cfg.BaseURL,
		owner:      cfg.Owner,
		token:      cfg.Token,
	}
	if client.apiURL == "" {
		client.apiURL = "https://api.github.com"
	}
	if client.baseURL == "" {
		client.baseURL = "https://github.com"
	}
	return client, nil
}

// SetToken replaces the API token used for subsequent requests. Called
// when the configuration file is reloaded; an empty token is ignored.
func (c *GitHubClient) SetToken(token string) {
	if token == "" {
		return
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *GitHubClient) authToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// githubRepo is the subset of the provider repository object this system reads.
type githubRepo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

func (r githubRepo) handle() *RepoHandle {
	branch := r.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	return &RepoHandle{Name: r.Name, HTMLURL: r.HTMLURL, DefaultBranch: branch}
}

// CreateRepository creates a new public repository owned by the configured user.
func (c *GitHubClient) CreateRepository(ctx context.Context, name, description string) (*RepoHandle, error) {
	payload := map[string]any{
		"name":        name,
		"description": description,
		"private":     false,
		"auto_init":   false,
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/user/repos", payload)
	if err != nil {
		return nil, apperrors.RepoCreateError(name, err)
	}

	var repo githubRepo
	if err := c.doRequest(req, &repo); err != nil {
		return nil, apperrors.RepoCreateError(name, err)
	}
	observability.InfoContext(ctx, "Created repository", logfields.Repository(name))
	return repo.handle(), nil
}

// GetRepository retrieves an existing repository by name, or nil if the
// provider does not know it.
func (c *GitHubClient) GetRepository(ctx context.Context, name string) (*RepoHandle, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", c.owner, name), nil)
	if err != nil {
		return nil, err
	}

	var repo githubRepo
	if err := c.doRequest(req, &repo); err != nil {
		if isNotFound(err) {
			return nil, apperrors.RepoNotFound(name)
		}
		return nil, err
	}
	return repo.handle(), nil
}

// contentsFile is the response shape of the contents API used for sha lookup.
type contentsFile struct {
	SHA string `json:"sha"`
}

// UpsertFile creates or updates a single file on the repository's default
// branch. The contents transport always carries base64; whether the payload
// originated as text or binary is the caller's concern only insofar as it
// was recorded in the FileContent.
func (c *GitHubClient) UpsertFile(ctx context.Context, handle *RepoHandle, filePath string, content FileContent, message string) error {
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, handle.Name, filePath)

	payload := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content.Data),
		"branch":  handle.DefaultBranch,
	}

	// Existing files need their blob sha for an update.
	if sha, err := c.fileSHA(ctx, handle, filePath); err == nil && sha != "" {
		payload["sha"] = sha
	}

	req, err := c.newRequest(ctx, http.MethodPut, endpoint, payload)
	if err != nil {
		return apperrors.FileUpsertError(filePath, err)
	}
	if err := c.doRequest(req, nil); err != nil {
		return apperrors.FileUpsertError(filePath, err)
	}
	return nil
}

func (c *GitHubClient) fileSHA(ctx context.Context, handle *RepoHandle, filePath string) (string, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", c.owner, handle.Name, filePath, url.QueryEscape(handle.DefaultBranch))
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	var f contentsFile
	if err := c.doRequest(req, &f); err != nil {
		return "", err
	}
	return f.SHA, nil
}

// EnablePages turns on public serving from the default branch root.
// An already-enabled response is success, not failure.
func (c *GitHubClient) EnablePages(ctx context.Context, handle *RepoHandle) error {
	payload := map[string]any{
		"source": map[string]any{
			"branch": handle.DefaultBranch,
			"path":   "/",
		},
	}
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/pages", c.owner, handle.Name), payload)
	if err != nil {
		return err
	}
	if err := c.doRequest(req, nil); err != nil {
		if isAlreadyExists(err) {
			observability.DebugContext(ctx, "Pages already enabled", logfields.Repository(handle.Name))
			return nil
		}
		return apperrors.Wrap(err, apperrors.CategoryForge, apperrors.SeverityError, "failed to enable pages").
			WithContext("repository", handle.Name)
	}
	observability.InfoContext(ctx, "Pages enabled", logfields.Repository(handle.Name))
	return nil
}

// branchInfo is the subset of the branch API response used for revision lookup.
type branchInfo struct {
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// LatestRevision returns the head commit sha of the default branch.
func (c *GitHubClient) LatestRevision(ctx context.Context, handle *RepoHandle) (string, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/branches/%s", c.owner, handle.Name, handle.DefaultBranch)
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	var b branchInfo
	if err := c.doRequest(req, &b); err != nil {
		return "", err
	}
	if b.Commit.SHA == "" {
		return "", fmt.Errorf("branch %s has no head commit", handle.DefaultBranch)
	}
	return b.Commit.SHA, nil
}

// PagesURL derives the public serving URL for a repository name. Pure
// derivation from the provider's hosting convention; no network call.
func (c *GitHubClient) PagesURL(name string) string {
	return fmt.Sprintf("https://%s.github.io/%s/", c.owner, name)
}

// Owner returns the configured repository owner.
func (c *GitHubClient) Owner() string { return c.owner }

// UpdateExistingFiles resolves a repository handle from its HTML URL and
// upserts each file under one commit message. Per-file failures are logged
// and tolerated; the returned sha is the branch head after the writes. An
// error is returned when nothing was written or the head cannot be read.
func (c *GitHubClient) UpdateExistingFiles(ctx context.Context, repoURL string, files []File, message string) (string, error) {
	name := repoNameFromURL(repoURL)
	if name == "" {
		return "", fmt.Errorf("cannot derive repository name from %q", repoURL)
	}

	handle, err := c.GetRepository(ctx, name)
	if err != nil {
		return "", err
	}

	written := 0
	for _, f := range files {
		if err := c.UpsertFile(ctx, handle, f.Path, f.Content, message); err != nil {
			observability.ErrorContext(ctx, "File upsert failed", logfields.Repository(name), logfields.Path(f.Path), logfields.Error(err))
			continue
		}
		written++
	}
	if written == 0 {
		return "", fmt.Errorf("no files written to %s", name)
	}

	return c.LatestRevision(ctx, handle)
}

// repoNameFromURL extracts the final path segment of a repository HTML URL.
func repoNameFromURL(repoURL string) string {
	trimmed := strings.TrimRight(repoURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return ""
	}
	return trimmed[idx+1:]
}

// httpStatusError carries the provider status code for classification.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("github api error: status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	if se, ok := underlyingStatus(err); ok {
		return se.status == http.StatusNotFound
	}
	return false
}

func isAlreadyExists(err error) bool {
	if se, ok := underlyingStatus(err); ok {
		return se.status == http.StatusConflict || se.status == http.StatusUnprocessableEntity
	}
	return false
}

func underlyingStatus(err error) (*httpStatusError, bool) {
	for err != nil {
		if se, ok := err.(*httpStatusError); ok {
			return se, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return nil, false
}

func (c *GitHubClient) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, err
	}
	// Preserve any query string; path.Join would mangle it.
	rawPath := endpoint
	rawQuery := ""
	if i := strings.Index(endpoint, "?"); i >= 0 {
		rawPath, rawQuery = endpoint[:i], endpoint[i+1:]
	}
	u.Path = path.Join(u.Path, rawPath)
	u.RawQuery = rawQuery

	var req *http.Request
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req, err = http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(string(jsonBody)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		var err error
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, err
		}
	}

	req.Header.Set("Authorization", "Bearer "+c.authToken())
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "AppBuilder/1.0")

	return req, nil
}

func (c *GitHubClient) doRequest(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var buf [512]byte
		n, _ := resp.Body.Read(buf[:])
		return &httpStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(buf[:n]))}
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}
