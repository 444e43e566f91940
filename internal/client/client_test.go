package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/larder/internal/engine"
)

func TestFetchOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, newPath, r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("auth"))
		assert.Equal(t, "lunch", r.URL.Query().Get("name"))
		assert.Equal(t, "9", r.URL.Query().Get("seed"))
		w.Header().Set("x-test-id", "t-123")
		w.Write([]byte(`[{"id":"a","name":"Soup","temp":"hot","freshness":30}]`))
	}))
	defer srv.Close()

	p, err := New(srv.URL+"/", "tok").FetchOrders(context.Background(), "lunch", 9)
	require.NoError(t, err)
	assert.Equal(t, "t-123", p.TestID)
	assert.Contains(t, string(p.Orders), `"id":"a"`)
}

func TestFetchOrders_OmitsOptionalParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("name"))
		assert.False(t, r.URL.Query().Has("seed"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok").FetchOrders(context.Background(), "", 0)
	require.NoError(t, err)
}

func TestSubmit(t *testing.T) {
	var got solution
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, solvePath, r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("auth"))
		assert.Equal(t, "t-123", r.Header.Get("x-test-id"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte("pass\n"))
	}))
	defer srv.Close()

	records := []engine.Record{{Timestamp: 10, ID: "a", Action: "place", Target: "heater"}}
	opts := NewOptions(500*time.Millisecond, 4*time.Second, 8*time.Second)

	verdict, err := New(srv.URL, "tok").Submit(context.Background(), "t-123", opts, records)
	require.NoError(t, err)
	assert.Equal(t, "pass", verdict)
	assert.Equal(t, Options{Rate: 500_000, Min: 4_000_000, Max: 8_000_000}, got.Options)
	assert.Equal(t, records, got.Actions)
}

func TestNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad auth", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "nope").FetchOrders(context.Background(), "", 0)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Contains(t, se.Body, "bad auth")
}

func TestFetchOrders_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(srv.URL, "tok").FetchOrders(ctx, "", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuthModes(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		wantHeader string
		wantQuery  string
	}{
		{"query parameter by default", nil, "", "tok"},
		{"bearer header", []Option{WithAuthHeader("", "Bearer")}, "Bearer tok", ""},
		{"bare header", []Option{WithAuthHeader("Authorization", "")}, "tok", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits++
				assert.Equal(t, tt.wantHeader, r.Header.Get("Authorization"), "%s %s", r.Method, r.URL.Path)
				assert.Equal(t, tt.wantQuery, r.URL.Query().Get("auth"), "%s %s", r.Method, r.URL.Path)
				w.Write([]byte(`[]`))
			}))
			defer srv.Close()

			c := New(srv.URL, "tok", tt.opts...)
			_, err := c.FetchOrders(context.Background(), "", 0)
			require.NoError(t, err)
			_, err = c.Submit(context.Background(), "t-1", Options{}, nil)
			require.NoError(t, err)
			assert.Equal(t, 2, hits)
		})
	}
}

func TestCustomHeaderName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token tok", r.Header.Get("X-Api-Key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok", WithAuthHeader("X-Api-Key", " Token ")).FetchOrders(context.Background(), "", 0)
	require.NoError(t, err)
}

func TestWithURLs_KeepsExistingQuery(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "embedded", r.URL.Query().Get("auth"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New("", "", WithURLs(srv.URL+"/orders?auth=embedded", srv.URL+"/solve?auth=embedded"))
	_, err := c.FetchOrders(context.Background(), "lunch", 0)
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), "t-1", Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/orders", "/solve"}, paths)
}

func TestParseHTTPURL(t *testing.T) {
	tests := []struct {
		raw string
		ok  bool
	}{
		{"https://api.example.com/orders?auth=x", true},
		{" HTTP://localhost:8080/orders ", true},
		{"", false},
		{"ftp://example.com/orders", false},
		{"localhost:8080/orders", false},
		{"http:///orders", false},
	}
	for _, tt := range tests {
		_, err := ParseHTTPURL(tt.raw, "ordersUrl")
		if tt.ok {
			assert.NoError(t, err, "ParseHTTPURL(%q)", tt.raw)
		} else {
			assert.Error(t, err, "ParseHTTPURL(%q)", tt.raw)
		}
	}
}
