package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL + "/", BreakerFailures: 2, BreakerTimeout: time.Hour}, StaticToken("tok"))
	require.NoError(t, err)
	return c
}

func TestClient_SendsBearerAndDecodes(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method
		var in journey.Journey
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.OwnerID = "user-1"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		require.NoError(t, json.NewEncoder(w).Encode(in))
	})

	out, err := c.Journeys().Create(context.Background(), journey.Journey{ID: "j1", Name: "Trip"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/api/v1/journeys", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "j1", out.ID)
	assert.Equal(t, "user-1", out.OwnerID)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "not found", status: http.StatusNotFound, want: output.ErrRemoteNotFound},
		{name: "conflict", status: http.StatusConflict, want: output.ErrRemoteConflict},
		{name: "unauthorized", status: http.StatusUnauthorized, want: output.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, want: output.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			})
			_, err := c.Journeys().GetByID(context.Background(), "j1")
			require.ErrorIs(t, err, tt.want)

			var re *output.RemoteError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.status, re.StatusCode)
			assert.Equal(t, "nope", re.Message)
		})
	}
}

func TestClient_ValidationFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"validation failed","fields":{"name":["is required"]}}`))
	})

	_, err := c.Journeys().Update(context.Background(), "j1", journey.Journey{ID: "j1"})
	var re *output.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"is required"}, re.Fields["name"])
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 5; i++ {
		_, err := c.Journeys().GetByID(context.Background(), "missing")
		require.ErrorIs(t, err, output.ErrRemoteNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState())
}

func TestClient_BreakerFailsFastWithoutRetrying(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := c.Journeys().Delete(ctx, "j1")
		var re *output.RemoteError
		require.ErrorAs(t, err, &re)
		assert.True(t, re.Temporary())
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState())

	err := c.Journeys().Delete(ctx, "j1")
	assert.ErrorIs(t, err, output.ErrRemoteUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_SyncAndLink(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/journeys/sync":
			var req struct {
				Items []journey.Journey `json:"items"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.NotNil(t, req.Items)
			_ = json.NewEncoder(w).Encode(output.SyncResult[journey.Journey]{
				Entities: []journey.Journey{{ID: "server"}},
				Errors:   []output.ItemError{{ID: "bad", Error: "forbidden"}},
			})
		case "/api/v1/account/link":
			var req linkRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "anon-token", req.AnonymousToken)
			_ = json.NewEncoder(w).Encode(linkResponse{Moved: 3})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	res, err := c.Journeys().Sync(ctx, nil)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "server", res.Entities[0].ID)
	assert.Equal(t, []output.ItemError{{ID: "bad", Error: "forbidden"}}, res.Errors)

	moved, err := c.LinkAccount(ctx, "anon-token")
	require.NoError(t, err)
	assert.Equal(t, 3, moved)
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.Error(t, err)
}
