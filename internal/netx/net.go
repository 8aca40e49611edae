// Package netx holds small HTTP helpers for talking to object storage
// through presigned URLs.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// DefaultContentType is sent when PutPresigned is given an empty content type.
const DefaultContentType = "application/octet-stream"

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 4 << 10

// StatusError is returned when the storage endpoint answers with a non-2xx code.
type StatusError struct {
	Method string
	Status string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %s; body: %s", e.Method, e.Status, e.Body)
}

// PutPresigned uploads body to a presigned PUT URL. A nil client means
// http.DefaultClient. size is sent as Content-Length when >= 0.
func PutPresigned(ctx context.Context, client *http.Client, url string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	if size >= 0 {
		req.ContentLength = size
	}
	if contentType == "" {
		contentType = DefaultContentType
	}
	req.Header.Set("Content-Type", contentType)

	return do(client, req)
}

func do(client *http.Client, req *http.Request) error {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: req.Method, Status: resp.Status, Code: resp.StatusCode, Body: string(b)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
