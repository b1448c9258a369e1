package matcher

import (
	"testing"

	"github.com/funnyzak/pagemock/pkg/request"
)

func newReq(method, url string, body string) *request.Request {
	return request.New(method, url, map[string]string{"X-Env": "test"}, []byte(body), request.TypeFetch)
}

func TestRouteMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		method  string
		req     *request.Request
		want    bool
	}{
		{"exact path", "/users/1", "GET", newReq("GET", "http://localhost/users/1", ""), true},
		{"exact path mismatch", "/users/1", "GET", newReq("GET", "http://localhost/users/2", ""), false},
		{"method mismatch", "/users/1", "POST", newReq("GET", "http://localhost/users/1", ""), false},
		{"method wildcard", "/users/1", "*", newReq("DELETE", "http://localhost/users/1", ""), true},
		{"empty method is wildcard", "/users/1", "", newReq("PATCH", "http://localhost/users/1", ""), true},
		{"brace placeholder", "/users/{id}", "GET", newReq("GET", "http://localhost/users/42", ""), true},
		{"colon placeholder", "/users/:id/posts", "GET", newReq("GET", "http://localhost/users/42/posts", ""), true},
		{"placeholder does not span segments", "/users/:id", "GET", newReq("GET", "http://localhost/users/42/posts", ""), false},
		{"prefix", "/api/*", "GET", newReq("GET", "http://localhost/api/v1/items", ""), true},
		{"prefix mismatch", "/api/*", "GET", newReq("GET", "http://localhost/static/app.js", ""), false},
		{"segment wildcard", "/files/*/raw", "GET", newReq("GET", "http://localhost/files/abc/raw", ""), true},
		{"glob", "/assets/**/logo.png", "GET", newReq("GET", "http://localhost/assets/img/v2/logo.png", ""), true},
		{"match all", "**", "GET", newReq("GET", "http://anything/at/all", ""), true},
		{"full url", "https://api.test/users/1", "GET", newReq("GET", "https://api.test/users/1", ""), true},
		{"full url other host", "https://api.test/users/1", "GET", newReq("GET", "https://other.test/users/1", ""), false},
		{"full url other scheme", "https://api.test/users/1", "GET", newReq("GET", "http://api.test/users/1", ""), false},
		{"full url ignores port", "http://localhost/users/1", "GET", newReq("GET", "http://localhost:8080/users/1", ""), true},
		{"wildcard host", "https://*.example.com/ping", "GET", newReq("GET", "https://eu.example.com/ping", ""), true},
		{"query required", "/search?q=go", "GET", newReq("GET", "http://localhost/search?q=go&page=1", ""), true},
		{"query mismatch", "/search?q=go", "GET", newReq("GET", "http://localhost/search?q=rust", ""), false},
		{"query placeholder", "/search?page=:page", "GET", newReq("GET", "http://localhost/search?page=3", ""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := New(tt.pattern, tt.method)
			if err != nil {
				t.Fatalf("compile %q failed: %v", tt.pattern, err)
			}
			if got := route.Match(tt.req); got != tt.want {
				t.Errorf("Match(%s) = %v, want %v", tt.req, got, tt.want)
			}
		})
	}
}

func TestRouteBodyPredicates(t *testing.T) {
	route := MustNew("/users", "POST", WithJSONBody(map[string]interface{}{"name": "ada", "age": 36}))

	if !route.Match(newReq("POST", "http://localhost/users", `{"age":36,"name":"ada"}`)) {
		t.Error("expected equivalent JSON body to match")
	}
	if route.Match(newReq("POST", "http://localhost/users", `{"name":"bob","age":36}`)) {
		t.Error("expected different JSON body not to match")
	}
	if route.Match(newReq("POST", "http://localhost/users", `not json`)) {
		t.Error("expected invalid JSON body not to match")
	}

	contains := MustNew("/login", "POST", WithBodyContains("password"))
	if !contains.Match(newReq("POST", "http://localhost/login", "user=a&password=b")) {
		t.Error("expected body contains predicate to match")
	}
}

func TestRouteHeaderPredicate(t *testing.T) {
	route := MustNew("/ping", "GET", WithHeader("X-Env", "test"))
	if !route.Match(newReq("GET", "http://localhost/ping", "")) {
		t.Error("expected header predicate to match")
	}
	route = MustNew("/ping", "GET", WithHeader("X-Env", "prod"))
	if route.Match(newReq("GET", "http://localhost/ping", "")) {
		t.Error("expected header predicate mismatch")
	}
}

func TestRouteDescribe(t *testing.T) {
	route := MustNew("/users/:id", "get")
	if route.Method() != "GET" {
		t.Errorf("expected upper-cased method, got %s", route.Method())
	}
	if route.String() != "GET /users/:id" {
		t.Errorf("unexpected description %q", route.String())
	}
}

func TestFunc(t *testing.T) {
	var m Matcher = Func(func(req *request.Request) bool { return req.ResourceType == request.TypeXHR })
	if m.Match(newReq("GET", "http://localhost/", "")) {
		t.Error("expected fetch request not to match xhr predicate")
	}
}

func TestRouteNilRequest(t *testing.T) {
	if MustNew("**", "*").Match(nil) {
		t.Error("nil request must never match")
	}
}
