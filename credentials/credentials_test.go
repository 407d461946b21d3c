package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPSource(t *testing.T) {
	type tc struct {
		name    string
		handler http.HandlerFunc
		want    string
		wantErr bool
	}

	for _, tt := range []tc{
		{
			name: "credential",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var req Request
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				require.Equal(t, "alloy", req.Voice)
				_ = json.NewEncoder(w).Encode(Response{Credential: "ek_123"})
			},
			want: "ek_123",
		},
		{
			name: "api key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"apiKey":"AIza-test"}`))
			},
			want: "AIza-test",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantErr: true,
		},
		{
			name: "empty",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
			wantErr: true,
		},
		{
			name: "garbage",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			wantErr: true,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			got, err := NewHTTPSource(HTTPConfig{URL: srv.URL}).Credential(context.Background(), "alloy")
			if tt.wantErr {
				require.ErrorIs(t, err, ErrCredential)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPSourceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPSource(HTTPConfig{URL: url}).Credential(context.Background(), "alloy")
	require.ErrorIs(t, err, ErrCredential)
}

func TestStatic(t *testing.T) {
	got, err := Static("k").Credential(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "k", got)
}
