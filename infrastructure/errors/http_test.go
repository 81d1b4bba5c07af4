package errors_test

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraerrors "github.com/jonesrussell/seoscan/infrastructure/errors"
)

func response(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    int
		body    string
		wantNil bool
		wantMsg string
	}{
		{name: "success", code: http.StatusOK, body: "ok", wantNil: true},
		{name: "string error", code: http.StatusBadRequest, body: `{"error":"bad url"}`, wantMsg: "bad url"},
		{name: "nested error", code: http.StatusForbidden, body: `{"error":{"message":"quota"}}`, wantMsg: "quota"},
		{name: "message field", code: http.StatusNotFound, body: `{"message":"missing"}`, wantMsg: "missing"},
		{name: "plain text", code: http.StatusBadGateway, body: "upstream down\n", wantMsg: "upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := infraerrors.ParseHTTPError(response(tt.code, tt.body))
			if tt.wantNil {
				require.NoError(t, err)
				return
			}
			var httpErr *infraerrors.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.wantMsg, httpErr.Message)
			assert.Equal(t, tt.code, httpErr.StatusCode)
		})
	}
}

func TestRateLimitedThroughWrap(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("render: %w", infraerrors.ParseHTTPError(response(http.StatusTooManyRequests, "")))

	assert.True(t, infraerrors.IsRateLimited(err))
	code, ok := infraerrors.StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, code)
}
