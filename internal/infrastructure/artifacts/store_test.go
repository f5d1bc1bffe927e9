package artifacts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	path, err := s.Put(ctx, "CERT-CSX-2026-AB12CD34.html", "text/html", []byte("<p>ok</p>"))
	require.NoError(t, err)
	assert.Equal(t, "CERT-CSX-2026-AB12CD34.html", path)

	b, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", string(b))

	require.NoError(t, s.Delete(ctx, path))
	require.NoError(t, s.Delete(ctx, path))
	_, err = s.Get(ctx, path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "../escape.html", "text/html", []byte("x"))
	assert.Error(t, err)
}

func TestSupabaseStore_RoundTrip(t *testing.T) {
	var mu sync.Mutex
	objects := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			b, _ := io.ReadAll(r.Body)
			objects[r.URL.Path] = b
			w.Write([]byte(`{"Key":"ok"}`))
		case http.MethodGet:
			b, ok := objects[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(b)
		case http.MethodDelete:
			delete(objects, r.URL.Path)
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	s := &SupabaseStore{BaseURL: srv.URL + "/", SecretKey: "service-key", Bucket: "certificates"}
	ctx := context.Background()

	path, err := s.Put(ctx, "a.html", "text/html", []byte("hello"))
	require.NoError(t, err)
	_, stored := objects["/storage/v1/object/certificates/a.html"]
	assert.True(t, stored)

	b, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	require.NoError(t, s.Delete(ctx, path))
	_, err = s.Get(ctx, path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupabaseStore_MissingConfig(t *testing.T) {
	s := &SupabaseStore{Bucket: "certificates"}
	_, err := s.Put(context.Background(), "a.html", "text/html", []byte("x"))
	assert.ErrorContains(t, err, "SUPABASE_URL")
}
