package supa

import (
	"bytes"
	"context"
	"errors"
	"net/http"
)

// Bucket describes a storage bucket.
type Bucket struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Public        bool   `json:"public"`
	FileSizeLimit int64  `json:"file_size_limit,omitempty"`
}

// GetBucket returns the bucket named id.
func (c *Client) GetBucket(ctx context.Context, accessToken, id string) (*Bucket, error) {
	var b Bucket
	err := c.doJSON(ctx, request{
		method: http.MethodGet,
		path:   "storage/v1/bucket/" + id,
		token:  accessToken,
	}, &b)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// EnsureBucket creates b when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context, accessToken string, b Bucket) error {
	_, err := c.GetBucket(ctx, accessToken, b.ID)
	if err == nil {
		return nil
	}
	var api *APIError
	if !errors.As(err, &api) || !api.IsNotFound() {
		return err
	}

	if b.Name == "" {
		b.Name = b.ID
	}
	body, err := jsonBody(b)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, request{method: http.MethodPost, path: "storage/v1/bucket", token: accessToken, body: body})
	return err
}

// Upload stores data as bucket/name, replacing any existing object.
func (c *Client) Upload(ctx context.Context, accessToken, bucket, name, contentType string, data []byte) error {
	_, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "storage/v1/object/" + bucket + "/" + name,
		token:       accessToken,
		body:        bytes.NewReader(data),
		contentType: contentType,
		headers:     map[string]string{"x-upsert": "true", "Cache-Control": "3600"},
	})
	return err
}

// PublicURL is the unauthenticated URL of an object in a public bucket.
func (c *Client) PublicURL(bucket, name string) string {
	return c.endpoint("storage/v1/object/public/"+bucket+"/"+name, nil)
}
