package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stylr/migrate/internal/batch"
	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/logger"
)

const httpRequestTimeout = 60 * time.Second

// HTTPTarget talks to a hosted bucket storage service over its REST API.
// Objects live at {base}/storage/v1/object/{bucket}/{path} and requests
// authenticate with a service-level bearer token.
type HTTPTarget struct {
	baseURL    string
	serviceKey string
	bucket     string
	client     *http.Client
	log        logger.Logger
}

// NewHTTPTarget creates an HTTP storage target from settings.
func NewHTTPTarget(settings *conf.HTTPStorageSettings, log logger.Logger) *HTTPTarget {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	return &HTTPTarget{
		baseURL:    strings.TrimRight(settings.BaseURL, "/"),
		serviceKey: settings.ServiceKey,
		bucket:     settings.Bucket,
		client:     &http.Client{Timeout: httpRequestTimeout},
		log:        log.Module("storage.http"),
	}
}

// Name implements ObjectStore.
func (t *HTTPTarget) Name() string { return "http" }

func (t *HTTPTarget) objectURL(remotePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", t.baseURL, t.bucket, strings.TrimLeft(remotePath, "/"))
}

func (t *HTTPTarget) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.serviceKey)
	return req, nil
}

// statusError converts a non-2xx response into an HTTPStatusError so the
// retry classifier can act on the status code.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &batch.HTTPStatusError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

// Upload implements ObjectStore. Existing objects are overwritten via the
// service's upsert header.
func (t *HTTPTarget) Upload(ctx context.Context, reader io.Reader, remotePath string) error {
	req, err := t.newRequest(ctx, http.MethodPost, t.objectURL(remotePath), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("x-upsert", "true")

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.New(err).
			Component("storage").
			Category(errors.CategoryNetwork).
			Context("path", remotePath).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	t.log.Debug("uploaded object", logger.String("path", remotePath))
	return nil
}

// Exists implements ObjectStore using a HEAD request.
func (t *HTTPTarget) Exists(ctx context.Context, remotePath string) (bool, error) {
	req, err := t.newRequest(ctx, http.MethodHead, t.objectURL(remotePath), nil)
	if err != nil {
		return false, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return false, errors.New(err).
			Component("storage").
			Category(errors.CategoryNetwork).
			Context("path", remotePath).
			Build()
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(resp)
	}
}

// Delete implements ObjectStore.
func (t *HTTPTarget) Delete(ctx context.Context, remotePath string) error {
	req, err := t.newRequest(ctx, http.MethodDelete, t.objectURL(remotePath), nil)
	if err != nil {
		return err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.New(err).
			Component("storage").
			Category(errors.CategoryNetwork).
			Context("path", remotePath).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	return nil
}

// Validate implements ObjectStore: the bucket must exist and the credentials
// must be accepted.
func (t *HTTPTarget) Validate(ctx context.Context) error {
	url := fmt.Sprintf("%s/storage/v1/bucket/%s", t.baseURL, t.bucket)
	req, err := t.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Newf("storage service unreachable: %w", err).
			Component("storage").
			Category(errors.CategoryNetwork).
			Context("base_url", t.baseURL).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("bucket %q not accessible: %w", t.bucket, statusError(resp)).
			Component("storage").
			Category(errors.CategoryStorageUpload).
			Build()
	}
	return nil
}
