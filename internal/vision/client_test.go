package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientDetect(t *testing.T) {
	var gotAuth string
	var gotBody detectRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"concepts":[{"name":"bottle","confidence":0.95},{"name":"container","confidence":0.81}]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, APIKey: "secret", RatePerSec: 1000, Burst: 10})
	concepts, err := client.Detect(context.Background(), "front-oil-bottle.jpg")
	require.NoError(t, err)
	require.Len(t, concepts, 2)
	require.Equal(t, "bottle", concepts[0].Name)
	require.InDelta(t, 0.95, concepts[0].Confidence, 0.0001)
	require.Equal(t, "Bearer secret", gotAuth)
	require.Equal(t, "front-oil-bottle.jpg", gotBody.ImageRef)
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"concepts":[{"name":"bottle","confidence":0.9}]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, MaxRetries: 2, RatePerSec: 1000, Burst: 10})
	concepts, err := client.Detect(context.Background(), "x.jpg")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	require.EqualValues(t, 2, calls.Load())
}

func TestClientDoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, MaxRetries: 3, RatePerSec: 1000, Burst: 10})
	_, err := client.Detect(context.Background(), "x.jpg")
	require.ErrorIs(t, err, ErrUnavailable)
	require.EqualValues(t, 1, calls.Load())
}

func TestClientOutageWrapsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, MaxRetries: 1, RatePerSec: 1000, Burst: 10})
	_, err := client.Detect(context.Background(), "x.jpg")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClientWithoutEndpointStaysSilent(t *testing.T) {
	client := NewClient(Config{})
	concepts, err := client.Detect(context.Background(), "x.jpg")
	require.NoError(t, err)
	require.Nil(t, concepts)
}

func TestNoopDetector(t *testing.T) {
	concepts, err := Noop{}.Detect(context.Background(), "anything.jpg")
	require.NoError(t, err)
	require.Nil(t, concepts)
}
