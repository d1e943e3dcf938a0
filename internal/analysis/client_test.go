package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 240, G: 200, B: 40, A: 255})
		}
	}
	return img
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

// fakeModel serves one canned reply and counts requests.
func fakeModel(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_AnalyzeSendsOneWellFormedRequest(t *testing.T) {
	var got completionRequest
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(completionBody("```json\n" + bananaJSON + "\n```")))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", APIURL: srv.URL})
	est, err := c.Analyze(context.Background(), testImage())
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "Banana", est.FoodName)
	assert.Equal(t, 105, est.Calories)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	require.Len(t, got.Messages[0].Content, 2)
	assert.Equal(t, "text", got.Messages[0].Content[0].Type)
	assert.Contains(t, got.Messages[0].Content[0].Text, "No food detected")
	assert.Equal(t, "image_url", got.Messages[0].Content[1].Type)
	require.NotNil(t, got.Messages[0].Content[1].ImageURL)
	assert.True(t, strings.HasPrefix(got.Messages[0].Content[1].ImageURL.URL, "data:image/jpeg;base64,"))
}

func TestClient_AnalyzeErrors(t *testing.T) {
	noFood := `{"foodName":"No food detected","calories":0,"protein":0,"carbs":0,"fat":0,"healthScore":0,"ingredients":""}`

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"no food", http.StatusOK, completionBody(noFood), ErrNoFoodDetected},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, ErrHTTP},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, ErrHTTP},
		{"empty body", http.StatusOK, "", ErrEmptyResponse},
		{"html body", http.StatusOK, "<html></html>", ErrMalformedResponse},
		{"missing content path", http.StatusOK, `{"id":"x"}`, ErrMalformedResponse},
		{"prose content", http.StatusOK, completionBody("I think that's a sandwich."), ErrSchema},
		{"truncated content", http.StatusOK, completionBody(`{"foodName":"Ban`), ErrSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := fakeModel(t, tt.status, tt.body)
			c := NewClient(Config{APIKey: "k", APIURL: srv.URL})

			est, err := c.Analyze(context.Background(), testImage())
			assert.Nil(t, est)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, int32(1), atomic.LoadInt32(calls))
		})
	}
}

func TestClient_HTTPErrorCarriesStatus(t *testing.T) {
	srv, _ := fakeModel(t, http.StatusTooManyRequests, "slow down")
	c := NewClient(Config{APIURL: srv.URL})

	_, err := c.Analyze(context.Background(), testImage())
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.Equal(t, "slow down", httpErr.Body)
}

func TestClient_EncodingErrorMakesNoRequest(t *testing.T) {
	srv, calls := fakeModel(t, http.StatusOK, completionBody(bananaJSON))
	c := NewClient(Config{APIURL: srv.URL})

	_, err := c.Analyze(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrEncoding))

	_, err = c.AnalyzeJPEG(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrEncoding))

	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestClient_TransportErrors(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := NewClient(Config{APIURL: url})
		_, err := c.Analyze(context.Background(), testImage())
		assert.True(t, errors.Is(err, ErrTransport), "got %v", err)
	})

	t.Run("timeout", func(t *testing.T) {
		block := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-block:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(block)

		c := NewClient(Config{APIURL: srv.URL, Timeout: 50 * time.Millisecond})
		_, err := c.Analyze(context.Background(), testImage())
		assert.True(t, errors.Is(err, ErrTransport), "got %v", err)
	})

	t.Run("cancelled", func(t *testing.T) {
		srv, calls := fakeModel(t, http.StatusOK, completionBody(bananaJSON))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := NewClient(Config{APIURL: srv.URL})
		_, err := c.Analyze(ctx, testImage())
		assert.True(t, errors.Is(err, ErrTransport), "got %v", err)
		assert.Zero(t, atomic.LoadInt32(calls))
	})
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(testImage())
	require.NoError(t, err)
	require.True(t, len(data) > 2)
	assert.Equal(t, []byte{0xff, 0xd8}, data[:2])
}
