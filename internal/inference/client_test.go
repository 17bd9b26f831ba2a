package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiphotofinder/photofinder/internal/errors"
)

const testEndpoint = "http://ollama.test/api/generate"

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func newTestClient(maxRetries int) *Client {
	return NewClient(Config{
		Endpoint:   testEndpoint,
		Model:      "llava:34b",
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
	})
}

func TestGenerateSendsRequest(t *testing.T) {
	setupHTTPMock(t)

	image := []byte{0xff, 0xd8, 0xff, 0x00}
	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "llava:34b", body["model"])
			assert.Equal(t, "list keywords", body["prompt"])
			assert.Equal(t, false, body["stream"])
			assert.Equal(t, []any{base64.StdEncoding.EncodeToString(image)}, body["images"])

			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"model":    "llava:34b",
				"response": "  cat, animal, pet\n",
				"done":     true,
			})
		})

	answer, err := newTestClient(0).Generate(t.Context(), image, "list keywords")
	require.NoError(t, err)
	assert.Equal(t, "cat, animal, pet", answer)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestGenerateNormalisesResponse(t *testing.T) {
	setupHTTPMock(t)

	// "e" followed by a combining acute accent
	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"response": "cafe\u0301"}))

	answer, err := newTestClient(0).Generate(t.Context(), []byte("img"), "p")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", answer)
}

func TestGenerateNon200(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusNotFound, `{"error":"model not found"}`))

	_, err := newTestClient(3).Generate(t.Context(), []byte("img"), "p")
	require.Error(t, err)

	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, http.StatusNotFound, ierr.StatusCode)
	assert.Contains(t, ierr.Body, "model not found")
	assert.True(t, errors.IsCategory(err, errors.CategoryHTTP))
	// 404 is permanent
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.ResponderFromMultipleResponses([]*http.Response{
			httpmock.NewStringResponse(http.StatusInternalServerError, "boom"),
			httpmock.NewStringResponse(http.StatusBadGateway, "boom"),
			httpmock.NewStringResponse(http.StatusOK, `{"response":"dog"}`),
		}))

	answer, err := newTestClient(3).Generate(t.Context(), []byte("img"), "p")
	require.NoError(t, err)
	assert.Equal(t, "dog", answer)
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestGenerateRetriesExhausted(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy"))

	_, err := newTestClient(2).Generate(t.Context(), []byte("img"), "p")
	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, http.StatusServiceUnavailable, ierr.StatusCode)
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestGenerateTransportError(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewErrorResponder(errors.NewStd("connection refused")))

	_, err := newTestClient(1).Generate(t.Context(), []byte("img"), "p")
	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Zero(t, ierr.StatusCode)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestGenerateMalformedBody(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, "not json"))

	_, err := newTestClient(3).Generate(t.Context(), []byte("img"), "p")
	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, http.StatusOK, ierr.StatusCode)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestGenerateMissingResponseField(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `{"done":true}`))

	_, err := newTestClient(0).Generate(t.Context(), []byte("img"), "p")
	assert.ErrorIs(t, err, ErrMissingResponse)
}

func TestGenerateCancelledContext(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"response": "x"}))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := newTestClient(3).Generate(ctx, []byte("img"), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{MaxRetries: -1, RateLimit: 2})
	assert.Equal(t, DefaultEndpoint, c.cfg.Endpoint)
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultTimeout, c.cfg.Timeout)
	assert.Zero(t, c.cfg.MaxRetries)
	require.NotNil(t, c.limiter)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "inference endpoint returned status 500: boom", (&Error{StatusCode: 500, Body: "boom"}).Error())
	assert.Equal(t, "inference request failed: eof", (&Error{Err: errors.NewStd("eof")}).Error())
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))

	// a two byte rune straddles the cut
	body := strings.Repeat("a", maxErrorBody-1) + "é" + "tail"
	out := truncate(body)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("a", maxErrorBody-1)+"...", out)

	ascii := strings.Repeat("b", maxErrorBody+10)
	assert.Equal(t, strings.Repeat("b", maxErrorBody)+"...", truncate(ascii))
}
