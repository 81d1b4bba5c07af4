package seo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mitchellh/mapstructure"

	infraerrors "github.com/jonesrussell/seoscan/infrastructure/errors"
	"github.com/jonesrussell/seoscan/infrastructure/retry"
)

const maxResponseBytes = 8 << 20

// Provider answers one section of the report.
type Provider interface {
	Name() string
	// Fetch returns a pointer to the provider's result type.
	Fetch(ctx context.Context, t Target) (any, error)
	// Decode restores a cached Fetch result.
	Decode(raw []byte) (any, error)
}

func decodeAs[T any](raw []byte) (any, error) {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return v, nil
}

// apiClient runs JSON requests against a third-party API with retries.
type apiClient struct {
	http  *http.Client
	retry retry.Config
}

// do rebuilds the request on every attempt so bodies can be replayed.
func (c apiClient) do(ctx context.Context, build func(context.Context) (*http.Request, error), out any) error {
	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		req, err := build(ctx)
		if err != nil {
			return err
		}
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if httpErr := infraerrors.ParseHTTPError(resp); httpErr != nil {
			return httpErr
		}
		if err = json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

// decodeMap converts loosely typed JSON (numbers as strings, nulls) into out
// using its json tags.
func decodeMap(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
