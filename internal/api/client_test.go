package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"))
}

func TestExpandPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		params  PathParams
		want    string
		wantErr bool
	}{
		{"No params", "/users", nil, "/users", false},
		{"Single param", "/users/:id", PathParams{"id": 42}, "/users/42", false},
		{"Multiple params", "/users/:id/files/:name", PathParams{"id": 1, "name": "a b"}, "/users/1/files/a%20b", false},
		{"Bool param", "/flags/:on", PathParams{"on": true}, "/flags/true", false},
		{"Overlapping names", "/users/:id/items/:idx", PathParams{"id": 1, "idx": 2}, "/users/1/items/2", false},
		{"Overlapping names reversed", "/items/:idx/users/:id", PathParams{"idx": "b", "id": "a"}, "/items/b/users/a", false},
		{"Repeated placeholder", "/:id/copy/:id", PathParams{"id": 7}, "/7/copy/7", false},
		{"Unbound placeholder kept", "/users/:id/:rest", PathParams{"id": 3}, "/users/3/:rest", false},
		{"Nil param", "/users/:id", PathParams{"id": nil}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandPath(tt.path, tt.params)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "missing path param")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeQuery(t *testing.T) {
	assert.Equal(t, "", encodeQuery(nil))
	assert.Equal(t, "", encodeQuery(QueryParams{"skip": nil}))
	assert.Equal(t, "a=1&b=true&c=x", encodeQuery(QueryParams{"c": "x", "a": 1, "b": true, "d": nil}))
}

func TestCall_GETMergesPayloadIntoQuery(t *testing.T) {
	var gotQuery, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Call(context.Background(), User, map[string]any{"page": 2}, nil, QueryParams{"size": 10})
	require.NoError(t, err)

	assert.Equal(t, "page=2&size=10", gotQuery)
	assert.Empty(t, gotContentType)
}

func TestCall_JSONBodyAndHeaders(t *testing.T) {
	var got []map[string]any
	var auth, requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/excel/json-to-excel", r.URL.Path)
		assert.Equal(t, ContentTypeJSON, r.Header.Get("Content-Type"))
		auth = r.Header.Get("Authorization")
		requestID = r.Header.Get("X-Request-ID")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", ContentTypeXLSX)
		w.Write([]byte("PK-binary"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithTokenStore(NewMemoryTokenStore(Tokens{AccessToken: "abc"})))
	resp, err := c.Call(context.Background(), JSONToExcel, []map[string]any{{"name": "A"}}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []byte("PK-binary"), resp.Body)
	assert.Equal(t, "Bearer abc", auth)
	assert.NotEmpty(t, requestID)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0]["name"])
}

func TestCall_MultipartRepeatsFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, []string{"0", "2"}, r.MultipartForm.Value["columnIndexes"])
		assert.Equal(t, []string{"name", "email"}, r.MultipartForm.Value["customKeys"])

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "book.xlsx", hdr.Filename)
		assert.Equal(t, "xlsx-bytes", string(data))
		w.Write([]byte(`[{"name":"A"}]`))
	}))
	defer srv.Close()

	var last float64
	form := &MultipartForm{OnProgress: func(f float64) { last = f }}
	form.AddFile("file", "book.xlsx", ContentTypeXLSX, []byte("xlsx-bytes"))
	form.Add("columnIndexes", "0")
	form.Add("columnIndexes", "2")
	form.Add("customKeys", "name")
	form.Add("customKeys", "email")

	c := NewClient(srv.URL)
	_, err := c.Call(context.Background(), UploadExcel, form, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, last, 0.0001)
}

func TestCall_StatusErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("File không hợp lệ. Vui lòng upload file .xlsx"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Call(context.Background(), UploadExcel, []byte("x"), nil, nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "File không hợp lệ. Vui lòng upload file .xlsx", UserMessage(err))
}

func TestCall_EndpointTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ep := User
	ep.Timeout = 20 * time.Millisecond
	c := NewClient(srv.URL)
	_, err := c.Call(context.Background(), ep, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

// authServer accepts only the "fresh" bearer and counts refreshes.
type authServer struct {
	refreshes atomic.Int32
	arrived   sync.WaitGroup
	fail      bool
	badBody   bool
}

func (a *authServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		a.refreshes.Add(1)
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body.RefreshToken)

		// Keep the refresh in flight long enough for every caller to join.
		time.Sleep(50 * time.Millisecond)
		switch {
		case a.fail:
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("refresh token expired"))
		case a.badBody:
			w.Write([]byte(`{}`))
		default:
			w.Write([]byte(`{"accessToken":"fresh"}`))
		}
	})
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			a.arrived.Done()
			a.arrived.Wait()
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[{"id":1}]`))
	})
	return mux
}

func TestCall_ConcurrentUnauthorizedSharesOneRefresh(t *testing.T) {
	const callers = 8

	as := &authServer{}
	as.arrived.Add(callers)
	srv := httptest.NewServer(as.handler(t))
	defer srv.Close()

	store := NewMemoryTokenStore(Tokens{AccessToken: "stale", RefreshToken: "refresh-1"})
	c := NewClient(srv.URL, WithTokenStore(store), WithRefreshEndpoint("/auth/refresh"))

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			users, err := CallJSON[[]map[string]int](context.Background(), c, User, nil, nil, nil)
			if err == nil && len(users) != 1 {
				err = errors.New("unexpected users payload")
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, int32(1), as.refreshes.Load())
	assert.Equal(t, "fresh", store.AccessToken())
}

func TestCall_RefreshFailureReachesEveryCaller(t *testing.T) {
	const callers = 4

	as := &authServer{fail: true}
	as.arrived.Add(callers)
	srv := httptest.NewServer(as.handler(t))
	defer srv.Close()

	store := NewMemoryTokenStore(Tokens{AccessToken: "stale", RefreshToken: "refresh-1"})
	c := NewClient(srv.URL, WithTokenStore(store), WithRefreshEndpoint("/auth/refresh"))

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Call(context.Background(), User, nil, nil, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		assert.Equal(t, "refresh token expired", UserMessage(err))
	}
	assert.Equal(t, int32(1), as.refreshes.Load())
	assert.Equal(t, "stale", store.AccessToken())
}

func TestCall_InvalidRefreshResponse(t *testing.T) {
	as := &authServer{badBody: true}
	as.arrived.Add(1)
	srv := httptest.NewServer(as.handler(t))
	defer srv.Close()

	store := NewMemoryTokenStore(Tokens{AccessToken: "stale", RefreshToken: "refresh-1"})
	c := NewClient(srv.URL, WithTokenStore(store), WithRefreshEndpoint("/auth/refresh"))

	_, err := c.Call(context.Background(), User, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRefreshResponse)
}

func TestCall_NoRefreshTokenReturnsOriginal401(t *testing.T) {
	as := &authServer{}
	as.arrived.Add(1)
	srv := httptest.NewServer(as.handler(t))
	defer srv.Close()

	c := NewClient(srv.URL, WithTokenStore(NewMemoryTokenStore(Tokens{AccessToken: "stale"})), WithRefreshEndpoint("/auth/refresh"))

	_, err := c.Call(context.Background(), User, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(0), as.refreshes.Load())
}

func TestCall_UnprotectedEndpointDoesNotRefresh(t *testing.T) {
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		w.Write([]byte(`{"accessToken":"fresh"}`))
	})
	mux.HandleFunc("/api/excel/json-to-excel", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := NewMemoryTokenStore(Tokens{AccessToken: "stale", RefreshToken: "refresh-1"})
	c := NewClient(srv.URL, WithTokenStore(store), WithRefreshEndpoint("/auth/refresh"))
	_, err := c.Call(context.Background(), JSONToExcel, []any{}, nil, nil)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(0), refreshes.Load())

	// The client-wide switch protects every endpoint.
	c = NewClient(srv.URL, WithTokenStore(store), WithRefreshEndpoint("/auth/refresh"), WithAuthRequired(true))
	_, err = c.Call(context.Background(), JSONToExcel, []any{}, nil, nil)
	assert.True(t, IsUnauthorized(err), "retry with the fresh token is still rejected")
	assert.Equal(t, int32(1), refreshes.Load())

	// Opting out skips the refresh even when auth is required.
	ep := JSONToExcel
	ep.NoAuthRetry = true
	_, err = c.Call(context.Background(), ep, []any{}, nil, nil)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "tokens.json")
	store := NewFileTokenStore(path)

	assert.Empty(t, store.AccessToken())
	assert.Empty(t, store.RefreshToken())

	require.NoError(t, store.Save(Tokens{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, store.SetAccessToken("a2"))

	reopened := NewFileTokenStore(path)
	assert.Equal(t, "a2", reopened.AccessToken())
	assert.Equal(t, "r1", reopened.RefreshToken())
}

func TestCall_CancelledWaiterDoesNotFailOthers(t *testing.T) {
	var refreshes atomic.Int32
	var arrived sync.WaitGroup
	arrived.Add(2)
	started := make(chan struct{})
	release := make(chan struct{})
	var startOnce sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		startOnce.Do(func() { close(started) })
		<-release
		w.Write([]byte(`{"accessToken":"fresh"}`))
	})
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			arrived.Done()
			arrived.Wait()
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[{"id":1}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := NewMemoryTokenStore(Tokens{AccessToken: "stale", RefreshToken: "refresh-1"})
	c := NewClient(srv.URL, WithTokenStore(store), WithRefreshEndpoint("/auth/refresh"))

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	errA := make(chan error, 1)
	errB := make(chan error, 1)
	go func() {
		_, err := c.Call(ctxA, User, nil, nil, nil)
		errA <- err
	}()
	go func() {
		_, err := c.Call(context.Background(), User, nil, nil, nil)
		errB <- err
	}()

	<-started
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	assert.NoError(t, <-errB)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, "fresh", store.AccessToken())
}

func TestFileTokenStore_UnreadableFileIsLogged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	core, logs := observer.New(zap.WarnLevel)
	store := NewFileTokenStore(path).WithLogger(zap.New(core))

	assert.Empty(t, store.AccessToken())
	assert.Empty(t, store.RefreshToken())

	entries := logs.FilterMessage("token file unreadable").All()
	require.Len(t, entries, 2)
	assert.Equal(t, path, entries[0].ContextMap()["path"])

	_, err := store.Load()
	assert.ErrorContains(t, err, "decode token file")
}
