package mock

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newMockedClient(t *testing.T, backend *httptest.Server) (*Interceptor, *http.Client) {
	t.Helper()
	rt := NewRoundTripper(backend.Client().Transport)
	ic := New(rt)
	if err := ic.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = ic.Stop() })
	return ic, &http.Client{Transport: rt}
}

func TestRoundTripperMocksAndFallback(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("real"))
	}))
	defer backend.Close()

	ic, client := newMockedClient(t, backend)
	if _, err := ic.Get("/users/:id", Response{Body: JSON(map[string]int{"id": 1})}); err != nil {
		t.Fatal(err)
	}

	resp, err := client.Get(backend.URL + "/users/1")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || string(body) != `{"id":1}` {
		t.Errorf("mocked response = %d %s", resp.StatusCode, body)
	}
	if resp.Header.Get("Content-Type") != contentTypeJSON {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}

	resp, err = client.Get(backend.URL + "/orders/2")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 404 || string(body) != DefaultNotFoundBody {
		t.Errorf("unmatched response = %d %s", resp.StatusCode, body)
	}
}

func TestRoundTripperPassthroughDocuments(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		w.Write([]byte("echo:" + string(data)))
	}))
	defer backend.Close()

	_, client := newMockedClient(t, backend)

	req, _ := http.NewRequest("POST", backend.URL+"/form", strings.NewReader("a=1"))
	req.Header.Set("Sec-Fetch-Dest", "document")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || string(body) != "echo:a=1" {
		t.Errorf("pass-through response = %d %s", resp.StatusCode, body)
	}
}

func TestRoundTripperUnsubscribed(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer backend.Close()

	rt := NewRoundTripper(backend.Client().Transport)
	ic := New(rt)
	if _, err := ic.Get("/", Response{Status: 200}); err != nil {
		t.Fatal(err)
	}

	resp, err := (&http.Client{Transport: rt}).Get(backend.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want request to reach backend", resp.StatusCode)
	}
}

func TestRoundTripperPreflight(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()

	_, client := newMockedClient(t, backend)

	req, _ := http.NewRequest("OPTIONS", backend.URL+"/users", nil)
	req.Header.Set("Origin", "https://app.test")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.test" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestHTTPExchangeSettlesOnce(t *testing.T) {
	req := httptest.NewRequest("GET", "http://app.test/", nil)
	ex := &httpExchange{httpReq: req, next: http.DefaultTransport}

	if err := ex.Respond(context.Background(), &Synthetic{Status: 200, Body: []byte{}}); err != nil {
		t.Fatal(err)
	}
	if err := ex.Respond(context.Background(), &Synthetic{Status: 500, Body: []byte{}}); err != ErrSettled {
		t.Errorf("second Respond() error = %v, want ErrSettled", err)
	}
	if err := ex.Continue(context.Background()); err != ErrSettled {
		t.Errorf("Continue() after Respond error = %v, want ErrSettled", err)
	}
	if ex.resp.StatusCode != 200 {
		t.Errorf("settled status = %d", ex.resp.StatusCode)
	}
}
