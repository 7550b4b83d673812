package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// mockServer builds an httptest.Server that checks the request line and
// answers with a canned response.
type mockServer struct {
	t          *testing.T
	handler    http.HandlerFunc
	expectPath string
	expectMeth string
	body       *[]byte
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	return &mockServer{t: t}
}

func (m *mockServer) Expect(method, path string) *mockServer {
	m.expectMeth, m.expectPath = method, path
	return m
}

// CaptureBody stores the request body in dst.
func (m *mockServer) CaptureBody(dst *[]byte) *mockServer {
	m.body = dst
	return m
}

func (m *mockServer) RespondJSON(code int, v any) *mockServer {
	m.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(v); err != nil {
			m.t.Fatalf("failed to encode JSON response: %v", err)
		}
	}
	return m
}

func (m *mockServer) RespondStatus(code int) *mockServer {
	m.handler = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(code) }
	return m
}

func (m *mockServer) RespondError(code int, errCode, message string) *mockServer {
	return m.RespondJSON(code, map[string]string{"error": message, "code": errCode})
}

// Build starts the server. The caller must Close it.
func (m *mockServer) Build() *httptest.Server {
	m.t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.expectPath != "" {
			assert.Equal(m.t, m.expectPath, r.URL.EscapedPath(), "unexpected request path")
		}
		if m.expectMeth != "" {
			assert.Equal(m.t, m.expectMeth, r.Method, "unexpected request method")
		}
		if m.body != nil {
			*m.body, _ = io.ReadAll(r.Body)
		}
		if m.handler != nil {
			m.handler(w, r)
		}
	}))
}

// withServerURL points the commands at url until the test ends.
func withServerURL(t *testing.T, url string) {
	old := serverURL
	serverURL = url
	t.Cleanup(func() { serverURL = old })
}
