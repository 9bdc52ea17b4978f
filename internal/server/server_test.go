package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/SergeyParamoshkin/articles/internal/article"
	"github.com/SergeyParamoshkin/articles/internal/metrics"
	"github.com/SergeyParamoshkin/articles/internal/model"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type articleJSON struct {
	ID      int64  `json:"id"`
	Author  string `json:"author"`
	Content string `json:"content"`
	Created string `json:"created"`
	Updated string `json:"updated"`
}

// steppingClock moves forward by step on every call.
func steppingClock(step time.Duration) article.Clock {
	var mu sync.Mutex
	now := epoch

	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		t := now
		now = now.Add(step)

		return t
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := article.NewMemoryStore(steppingClock(time.Second))
	app := New(zap.NewNop().Sugar(), store, nil, Options{Location: time.UTC})

	srv := httptest.NewServer(app.Router())
	t.Cleanup(srv.Close)

	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if resp.StatusCode != http.StatusFound {
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	}

	return resp.StatusCode, data
}

func decodeArticle(t *testing.T, data []byte) articleJSON {
	t.Helper()

	var a articleJSON
	require.NoError(t, json.Unmarshal(data, &a))

	return a
}

func create(t *testing.T, srv *httptest.Server, author, content string) articleJSON {
	t.Helper()

	body, err := json.Marshal(map[string]string{"author": author, "content": content})
	require.NoError(t, err)

	code, data := do(t, srv, http.MethodPost, "/api/articles", string(body))
	require.Equal(t, http.StatusOK, code, string(data))

	return decodeArticle(t, data)
}

func TestCreateThenPatchScenario(t *testing.T) {
	srv := newTestServer(t)

	code, data := do(t, srv, http.MethodPost, "/api/articles", `{"author":"Jane","content":"Hello"}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t,
		`{"id":1,"author":"Jane","content":"Hello","created":"2024-01-01T00:00:00","updated":"2024-01-01T00:00:00"}`,
		string(data))

	code, data = do(t, srv, http.MethodPatch, "/api/articles/1", `{"content":"Hello world"}`)
	require.Equal(t, http.StatusOK, code)

	got := decodeArticle(t, data)
	assert.Equal(t, "Jane", got.Author)
	assert.Equal(t, "Hello world", got.Content)
	assert.Equal(t, "2024-01-01T00:00:00", got.Created)
	assert.Greater(t, got.Updated, got.Created)
}

func TestCreateAssignsUnseenIDs(t *testing.T) {
	srv := newTestServer(t)

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		a := create(t, srv, "a", "b")
		assert.False(t, seen[a.ID])
		assert.Equal(t, a.Created, a.Updated)
		seen[a.ID] = true
	}
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing author", `{"content":"x"}`, `{"errors":["Field 'author' not specified"]}`},
		{"missing both", `{"foo":"x"}`, `{"errors":["Field 'author' not specified","Field 'content' not specified"]}`},
		{"non string", `{"author":5,"content":"x"}`, `{"errors":["Field 'author' is missing or is not a string"]}`},
		{"null content", `{"author":"a","content":null}`, `{"errors":["Field 'content' is missing or is not a string"]}`},
		{"empty object", `{}`, `{"errors":["No JSON sent"]}`},
		{"malformed", `{"author":`, `{"errors":["Malformed JSON"]}`},
		{"trailing data", `{"author":"a","content":"b"} trailing`, `{"errors":["Malformed JSON"]}`},
		{"empty array", `[]`, `{"errors":["No JSON sent"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, data := do(t, srv, http.MethodPost, "/api/articles", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.JSONEq(t, tt.want, string(data))
		})
	}

	code, data := do(t, srv, http.MethodGet, "/api/articles", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"objects":[]}`, string(data), "nothing is persisted on failed validation")
}

func TestCreateWithoutBody(t *testing.T) {
	srv := newTestServer(t)

	code, data := do(t, srv, http.MethodPost, "/api/articles", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"errors":["No JSON sent"]}`, string(data))
}

func TestCreateRequiresJSONContentType(t *testing.T) {
	srv := newTestServer(t)

	for _, contentType := range []string{"", "text/plain", "application/x-www-form-urlencoded"} {
		t.Run("content type "+contentType, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/articles",
				strings.NewReader(`{"author":"Jane","content":"Hello"}`))
			require.NoError(t, err)

			if contentType != "" {
				req.Header.Set("Content-Type", contentType)
			}

			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
			assert.JSONEq(t, `{"errors":["No JSON sent"]}`, string(data))
		})
	}

	code, data := do(t, srv, http.MethodGet, "/api/articles", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"objects":[]}`, string(data))
}

func TestGet(t *testing.T) {
	srv := newTestServer(t)
	created := create(t, srv, "Jane", "Hello")

	code, data := do(t, srv, http.MethodGet, "/api/articles/1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, created, decodeArticle(t, data))

	code, data = do(t, srv, http.MethodGet, "/api/articles/2", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"article 2 not found"}`, string(data))
}

func TestGetNonNumericID(t *testing.T) {
	srv := newTestServer(t)

	code, data := do(t, srv, http.MethodGet, "/api/articles/abc", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"not found"}`, string(data))

	code, data = do(t, srv, http.MethodGet, "/api/articles/99999999999999999999", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"article 99999999999999999999 not found"}`, string(data))
}

func TestList(t *testing.T) {
	srv := newTestServer(t)
	first := create(t, srv, "a", "x")
	second := create(t, srv, "b", "y")

	code, data := do(t, srv, http.MethodGet, "/api/articles", "")
	require.Equal(t, http.StatusOK, code)

	var got struct {
		Objects []articleJSON `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []articleJSON{first, second}, got.Objects)
}

func TestPut(t *testing.T) {
	srv := newTestServer(t)
	created := create(t, srv, "Jane", "Hello")

	code, data := do(t, srv, http.MethodPut, "/api/articles/1", `{"author":"Bob","content":"Bye"}`)
	require.Equal(t, http.StatusOK, code)

	got := decodeArticle(t, data)
	assert.Equal(t, "Bob", got.Author)
	assert.Equal(t, "Bye", got.Content)
	assert.Equal(t, created.Created, got.Created)
	assert.GreaterOrEqual(t, got.Updated, created.Updated)
}

func TestPutMissingFieldIsRejected(t *testing.T) {
	srv := newTestServer(t)
	create(t, srv, "Jane", "Hello")

	code, data := do(t, srv, http.MethodPut, "/api/articles/1", `{"author":"Bob"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"errors":["Field 'content' not specified"]}`, string(data))

	_, data = do(t, srv, http.MethodGet, "/api/articles/1", "")
	assert.Equal(t, "Jane", decodeArticle(t, data).Author, "no partial update")
}

func TestUpdateValidationWinsOverMissingArticle(t *testing.T) {
	srv := newTestServer(t)

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		code, _ := do(t, srv, method, "/api/articles/42", `{"author":1}`)
		assert.Equal(t, http.StatusBadRequest, code, method)

		code, data := do(t, srv, method, "/api/articles/42", `{"author":"a","content":"b"}`)
		assert.Equal(t, http.StatusNotFound, code, method)
		assert.JSONEq(t, `{"error":"article 42 not found"}`, string(data))
	}
}

func TestPatchAuthorOnly(t *testing.T) {
	srv := newTestServer(t)
	created := create(t, srv, "Jane", "Hello")

	code, data := do(t, srv, http.MethodPatch, "/api/articles/1", `{"author":"Bob"}`)
	require.Equal(t, http.StatusOK, code)

	got := decodeArticle(t, data)
	assert.Equal(t, "Bob", got.Author)
	assert.Equal(t, "Hello", got.Content)
	assert.GreaterOrEqual(t, got.Updated, created.Updated)
}

func TestPatchWithoutKnownFieldsTouchesUpdated(t *testing.T) {
	srv := newTestServer(t)
	created := create(t, srv, "Jane", "Hello")

	code, data := do(t, srv, http.MethodPatch, "/api/articles/1", `{"title":"ignored"}`)
	require.Equal(t, http.StatusOK, code)

	got := decodeArticle(t, data)
	assert.Equal(t, "Jane", got.Author)
	assert.Equal(t, "Hello", got.Content)
	assert.Greater(t, got.Updated, created.Updated)
}

func TestDelete(t *testing.T) {
	srv := newTestServer(t)
	create(t, srv, "Jane", "Hello")

	code, data := do(t, srv, http.MethodDelete, "/api/articles/1", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"ok"}`, string(data))

	code, _ = do(t, srv, http.MethodGet, "/api/articles/1", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, data = do(t, srv, http.MethodDelete, "/api/articles/1", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"article 1 not found"}`, string(data))
}

func TestRootRedirects(t *testing.T) {
	srv := newTestServer(t)

	client := srv.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/api/articles", resp.Header.Get("Location"))
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	code, data := do(t, srv, http.MethodDelete, "/api/articles", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.JSONEq(t, `{"error":"method not allowed"}`, string(data))
}

func TestDocs(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/docs/openapi.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
}

type failingStore struct {
	article.Store
}

func (failingStore) List(ctx context.Context) ([]*model.Article, error) {
	return nil, errors.New("database is down")
}

func (failingStore) Ping(ctx context.Context) error {
	return errors.New("database is down")
}

func TestStoreFailureIsLoggedAndHidden(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	app := New(zap.New(core).Sugar(), failingStore{}, nil, Options{})

	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	code, data := do(t, srv, http.MethodGet, "/api/articles", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.JSONEq(t, `{"error":"internal server error"}`, string(data))

	failures := logs.FilterMessage("request failed").All()
	require.Len(t, failures, 1)
	assert.NotEmpty(t, failures[0].ContextMap()["request_id"])
	assert.Equal(t, 1, logs.FilterMessage("request").Len())
}

func TestPanicRendersJSON(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	app := New(zap.New(core).Sugar(), article.NewMemoryStore(nil), nil, Options{})

	h := app.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/articles", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())

	entries := logs.FilterMessage("panic serving request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].ContextMap()["panic"])
}

func TestHealthzFailsWhileDraining(t *testing.T) {
	app := New(zap.NewNop().Sugar(), article.NewMemoryStore(nil), nil, Options{})
	app.draining.Store(true)

	w := httptest.NewRecorder()
	app.Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"draining"}`, w.Body.String())
}

func TestDiagRouter(t *testing.T) {
	m, err := metrics.New(ServiceName)
	require.NoError(t, err)

	healthy := New(zap.NewNop().Sugar(), article.NewMemoryStore(nil), m, Options{})
	diag := httptest.NewServer(healthy.DiagRouter())
	defer diag.Close()

	api := httptest.NewServer(healthy.Router())
	defer api.Close()

	code, _ := do(t, api, http.MethodGet, "/api/articles", "")
	require.Equal(t, http.StatusOK, code)

	resp, err := diag.Client().Get(diag.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = diag.Client().Get(diag.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `http_route="/api/articles`)

	resp, err = diag.Client().Get(diag.URL + "/ping")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))

	sick := New(zap.NewNop().Sugar(), failingStore{}, nil, Options{})
	w := httptest.NewRecorder()
	sick.Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	app := New(zap.NewNop().Sugar(), article.NewMemoryStore(nil), nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- app.Run(ctx, "127.0.0.1:0", "127.0.0.1:0", time.Second)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.True(t, app.draining.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
