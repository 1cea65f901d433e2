// Package vos is a typed REST client for the versioned object store —
// a LakeFS-shaped branching/commit API that backs every repository's
// history. Grounded on the teacher's adapters/grpc/out pattern (a
// typed Repository interface wrapping one external-system connection,
// components/ledger/internal/adapters/grpc/out/trillian.grpc.go),
// transposed from gRPC to a REST client built on go-resty.
package vos

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/platform/retry"
)

// Config carries the connection parameters for the VOS endpoint
// (spec §6 KOHAKU_HUB_LAKEFS_* env vars).
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
}

// ObjectRef is a staged or committed object's physical location.
type ObjectRef struct {
	Path      string `json:"path"`
	PhysicalAddress string `json:"physical_address"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// CommitResult is what VOS.commit returns.
type CommitResult struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Committer string `json:"committer"`
}

// Client is the typed VOS accessor every repo/branch/commit operation
// in the commit engine goes through.
type Client struct {
	http *resty.Client
}

// Store is the port the commit/resolve/reconcile engines depend on;
// *Client satisfies it against a live VOS deployment, tests substitute
// an in-memory fake that models branches as ordered commit lists.
type Store interface {
	CreateRepository(ctx context.Context, vosName, namespace, defaultBranch string) error
	DeleteRepository(ctx context.Context, vosName string) error
	StatBranch(ctx context.Context, vosName, branch string) (commitID string, err error)
	StageObject(ctx context.Context, vosName, branch, path, physicalAddress string, size int64, checksum string) error
	DeleteObject(ctx context.Context, vosName, branch, path string) error
	Commit(ctx context.Context, vosName, branch, message string, metadata map[string]string) (*CommitResult, error)
	GetObject(ctx context.Context, vosName, ref, path string) (*ObjectRef, error)
	ListObjects(ctx context.Context, vosName, ref, prefix, after string, limit int) ([]ObjectRef, error)
	LogCommits(ctx context.Context, vosName, branch string, after string, limit int) ([]CommitResult, error)
}

var _ Store = (*Client)(nil)

// NewClient builds a resty-backed VOS client with basic auth and a
// bounded per-request timeout; retries are layered on top per-call via
// internal/platform/retry since only idempotent VOS calls are safe to
// repeat (spec §4.A).
func NewClient(cfg Config) *Client {
	http := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetBasicAuth(cfg.AccessKey, cfg.SecretKey).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &Client{http: http}
}

func (c *Client) CreateRepository(ctx context.Context, vosName, namespace, defaultBranch string) error {
	resp, err := c.http.R().SetContext(ctx).
		SetBody(map[string]any{
			"name":             vosName,
			"storage_namespace": namespace,
			"default_branch":   defaultBranch,
		}).
		Post("/repositories")

	return c.classify(resp, err, "failed to create VOS repository")
}

func (c *Client) DeleteRepository(ctx context.Context, vosName string) error {
	resp, err := c.http.R().SetContext(ctx).Delete("/repositories/" + vosName)

	return c.classify(resp, err, "failed to delete VOS repository")
}

func (c *Client) StatBranch(ctx context.Context, vosName, branch string) (string, error) {
	var out struct {
		CommitID string `json:"commit_id"`
	}

	resp, err := c.http.R().SetContext(ctx).SetResult(&out).
		Get(fmt.Sprintf("/repositories/%s/branches/%s", vosName, branch))
	if classifyErr := c.classify(resp, err, "failed to stat branch"); classifyErr != nil {
		return "", classifyErr
	}

	return out.CommitID, nil
}

func (c *Client) StageObject(ctx context.Context, vosName, branch, path, physicalAddress string, size int64, checksum string) error {
	err := retry.Do(ctx, retry.DefaultMaxElapsed, retry.AlwaysRetry, func() error {
		resp, doErr := c.http.R().SetContext(ctx).
			SetBody(map[string]any{
				"path":             path,
				"physical_address": physicalAddress,
				"size_bytes":       size,
				"checksum":         checksum,
			}).
			Put(fmt.Sprintf("/repositories/%s/branches/%s/staging/%s", vosName, branch, path))

		return c.classify(resp, doErr, "failed to stage object")
	})

	return err
}

func (c *Client) DeleteObject(ctx context.Context, vosName, branch, path string) error {
	resp, err := c.http.R().SetContext(ctx).
		Delete(fmt.Sprintf("/repositories/%s/branches/%s/objects/%s", vosName, branch, path))

	return c.classify(resp, err, "failed to delete object")
}

// Commit is NOT retried automatically: a retry after an ambiguous
// network failure could double-commit. The commit engine's caller
// decides whether to retry based on the specific error it observes.
func (c *Client) Commit(ctx context.Context, vosName, branch, message string, meta map[string]string) (*CommitResult, error) {
	var out CommitResult

	resp, err := c.http.R().SetContext(ctx).SetResult(&out).
		SetBody(map[string]any{"message": message, "metadata": meta}).
		Post(fmt.Sprintf("/repositories/%s/branches/%s/commits", vosName, branch))
	if classifyErr := c.classify(resp, err, "failed to commit"); classifyErr != nil {
		return nil, classifyErr
	}

	return &out, nil
}

func (c *Client) GetObject(ctx context.Context, vosName, ref, path string) (*ObjectRef, error) {
	var out ObjectRef

	resp, err := c.http.R().SetContext(ctx).SetResult(&out).
		Get(fmt.Sprintf("/repositories/%s/refs/%s/objects/stat?path=%s", vosName, ref, path))
	if classifyErr := c.classify(resp, err, "failed to stat object"); classifyErr != nil {
		return nil, classifyErr
	}

	return &out, nil
}

func (c *Client) ListObjects(ctx context.Context, vosName, ref, prefix, after string, limit int) ([]ObjectRef, error) {
	var out struct {
		Results []ObjectRef `json:"results"`
	}

	resp, err := c.http.R().SetContext(ctx).SetResult(&out).
		SetQueryParams(map[string]string{
			"prefix": prefix,
			"after":  after,
			"amount": fmt.Sprint(limit),
		}).
		Get(fmt.Sprintf("/repositories/%s/refs/%s/objects/ls", vosName, ref))
	if classifyErr := c.classify(resp, err, "failed to list objects"); classifyErr != nil {
		return nil, classifyErr
	}

	return out.Results, nil
}

func (c *Client) LogCommits(ctx context.Context, vosName, branch, after string, limit int) ([]CommitResult, error) {
	var out struct {
		Results []CommitResult `json:"results"`
	}

	resp, err := c.http.R().SetContext(ctx).SetResult(&out).
		SetQueryParams(map[string]string{"after": after, "amount": fmt.Sprint(limit)}).
		Get(fmt.Sprintf("/repositories/%s/refs/%s/commits", vosName, branch))
	if classifyErr := c.classify(resp, err, "failed to list commits"); classifyErr != nil {
		return nil, classifyErr
	}

	return out.Results, nil
}

func (c *Client) classify(resp *resty.Response, err error, msg string) error {
	if err != nil {
		return apperr.WrapInternal(err, "ServerError", msg)
	}

	if resp.StatusCode() == 404 {
		return apperr.NewNotFound("", "RevisionNotFound", msg)
	}

	if resp.StatusCode() == 409 {
		return apperr.NewConflict("", "EntityConflict", msg)
	}

	if resp.IsError() {
		return apperr.WrapInternal(fmt.Errorf("vos: %s", resp.Status()), "ServerError", msg)
	}

	return nil
}
