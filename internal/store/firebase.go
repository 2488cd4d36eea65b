package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coinbazar/internal/app"

	"github.com/go-resty/resty/v2"
)

// Firebase talks to a Realtime Database over its REST protocol:
// GET/PUT/PATCH <base>/<path>.json.
type Firebase struct {
	client  *resty.Client
	baseURL string
	auth    string
}

func NewFirebase(baseURL string, auth string) *Firebase {
	client := resty.New().
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json")
	return &Firebase{
		client:  client,
		baseURL: app.RemoveTrailingSlash(baseURL),
		auth:    auth,
	}
}

func (f *Firebase) url(path string) string {
	return fmt.Sprintf("%s/%s.json", f.baseURL, Join(path))
}

func (f *Firebase) request(ctx context.Context) *resty.Request {
	req := f.client.R().SetContext(ctx)
	if f.auth != "" {
		req.SetQueryParam("auth", f.auth)
	}
	return req
}

func (f *Firebase) Get(ctx context.Context, path string) (json.RawMessage, error) {
	resp, err := f.request(ctx).Get(f.url(path))
	if err != nil {
		return nil, fmt.Errorf("firebase get %s: %w", path, app.StripURL(err))
	}
	if resp.IsError() {
		return nil, fmt.Errorf("firebase get %s: %s", path, resp.Status())
	}
	if isNull(resp.Body()) {
		return nil, nil
	}
	return json.RawMessage(resp.Body()), nil
}

func (f *Firebase) Set(ctx context.Context, path string, data interface{}) error {
	resp, err := f.request(ctx).SetBody(data).Put(f.url(path))
	if err != nil {
		return fmt.Errorf("firebase set %s: %w", path, app.StripURL(err))
	}
	if resp.IsError() {
		return fmt.Errorf("firebase set %s: %s", path, resp.Status())
	}
	return nil
}

func (f *Firebase) Update(ctx context.Context, path string, data interface{}) error {
	resp, err := f.request(ctx).SetBody(data).Patch(f.url(path))
	if err != nil {
		return fmt.Errorf("firebase update %s: %w", path, app.StripURL(err))
	}
	if resp.IsError() {
		return fmt.Errorf("firebase update %s: %s", path, resp.Status())
	}
	return nil
}
