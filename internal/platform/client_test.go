package platform

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rflorenc/mapsite-admin/internal/models"
)

func newTestClient(ts *httptest.Server, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	hc := ts.Client()
	hc.Jar = jar
	c := NewClient(&models.Backend{Scheme: "http", Host: "unused", Port: 80}, append([]Option{WithHTTPClient(hc)}, opts...)...)
	c.baseURL = ts.URL
	return c
}

func TestClient_Get_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	body, err := c.Get(context.Background(), "/api/info", nil)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %q, want {\"status\":\"ok\"}", string(body))
	}
}

func TestClient_Get_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Forbidden", http.StatusForbidden)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.Get(context.Background(), "/api/user", nil)
	if err == nil {
		t.Fatal("Get should return error for 403")
	}
	var herr *HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("error %T is not *HTTPError", err)
	}
	if herr.Status != http.StatusForbidden || herr.Reason != "Forbidden" {
		t.Errorf("HTTPError = %d %q", herr.Status, herr.Reason)
	}
	if Classify(err) != KindLogin {
		t.Errorf("Classify = %v, want login", Classify(err))
	}
}

func TestClient_SessionCookie(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathLogin:
			r.ParseForm()
			if r.Form.Get("acc") != "admin" || r.Form.Get("pwd") != "secret" {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "sess", Value: "abc", Path: "/"})
			w.Write([]byte(`{}`))
		case PathUser:
			if ck, err := r.Cookie("sess"); err != nil || ck.Value != "abc" {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			w.Write([]byte(`{"uid":1,"name":"Admin"}`))
		}
	}))
	defer ts.Close()

	c := newTestClient(ts)
	ctx := context.Background()
	if _, err := c.CheckUser(ctx); err == nil {
		t.Fatal("CheckUser before login should fail")
	}
	if err := c.Login(ctx, "admin", "wrong"); Classify(err) != KindLogin {
		t.Fatalf("Login(wrong) = %v, want Forbidden", err)
	}
	if err := c.Login(ctx, "admin", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	user, err := c.CheckUser(ctx)
	if err != nil {
		t.Fatalf("CheckUser after login: %v", err)
	}
	if user.String("name") != "Admin" {
		t.Errorf("name = %q, want Admin", user.String("name"))
	}
}

func TestClient_Mutate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %s", ct)
		}
		r.ParseForm()
		if r.URL.Path == "/api/layer/order" {
			if got := r.Form.Get("order"); got != "3,1,2" {
				t.Errorf("order = %q", got)
			}
			w.Write([]byte(`{"ok":true}`))
			return
		}
		w.Write([]byte(`{"ok":false,"msg":"duplicate name"}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	ctx := context.Background()
	res, err := c.Endpoint("layer").Save(ctx, "", map[string][]string{"name": {"roads"}})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.OK || res.Msg != "duplicate name" {
		t.Errorf("Result = %+v", res)
	}
	res, err = c.Endpoint("layer").Order(ctx, "3,1,2")
	if err != nil || !res.OK {
		t.Fatalf("Order = %+v, %v", res, err)
	}
}

func TestClient_Mutate_NotJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	if _, err := c.Endpoint("map").Delete(context.Background(), "3"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEndpointPaths(t *testing.T) {
	var got []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodGet {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	ctx := context.Background()
	ep := newTestClient(ts).Endpoint("/link/")
	ep.List(ctx)
	ep.Get(ctx, "7")
	ep.Save(ctx, "", nil)
	ep.Save(ctx, "7", nil)
	ep.Delete(ctx, "7")
	ep.Order(ctx, "7/0")

	want := []string{
		"GET /api/link/",
		"GET /api/link/7",
		"POST /api/link/",
		"POST /api/link/7",
		"POST /api/link/7/del",
		"POST /api/link/order",
	}
	if len(got) != len(want) {
		t.Fatalf("requests = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClient_Upload_Progress(t *testing.T) {
	var received string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		f, _, err := r.FormFile(AttachField)
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		b, _ := io.ReadAll(f)
		received = string(b)
		w.Write([]byte(`[{"aid":1}]`))
	}))
	defer ts.Close()

	var lastSent, lastTotal int64
	c := newTestClient(ts)
	res, err := c.Endpoint("attach").Upload(context.Background(),
		[]UploadFile{{Name: "roads.geojson", Content: strings.NewReader(`{"type":"FeatureCollection"}`)}},
		func(sent, total int64) { lastSent, lastTotal = sent, total })
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !res.OK {
		t.Errorf("Result = %+v, want ok", res)
	}
	if received != `{"type":"FeatureCollection"}` {
		t.Errorf("received = %q", received)
	}
	if lastTotal == 0 || lastSent != lastTotal {
		t.Errorf("progress = %d/%d, want complete", lastSent, lastTotal)
	}
}

func TestClient_Metrics(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	c := newTestClient(ts, WithMetrics(m))
	c.Ping(context.Background())
	c.Ping(context.Background())
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("GET", "200")); got != 2 {
		t.Errorf("requests_total = %v, want 2", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"forbidden", &HTTPError{Status: 403, Reason: "Forbidden"}, KindLogin},
		{"no permission", &HTTPError{Status: 403, Reason: "no permission"}, KindPermission},
		{"server error", &HTTPError{Status: 500, Reason: "Internal server error"}, KindGeneric},
		{"transport", errors.New("dial tcp: connection refused"), KindGeneric},
		{"nil", nil, KindGeneric},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		expect string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"empty", "", 5, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := truncate(tc.input, tc.maxLen)
			if got != tc.expect {
				t.Errorf("truncate(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.expect)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	b := &models.Backend{Scheme: "https", Host: "example.com", Port: 443, Insecure: true}
	c := NewClient(b)
	if c.baseURL != "https://example.com:443" {
		t.Errorf("baseURL = %q, want https://example.com:443", c.baseURL)
	}
	if c.httpClient.Jar == nil {
		t.Error("client has no cookie jar")
	}
}

func TestParseSession(t *testing.T) {
	s, err := ParseSession([]byte(`{"user":[{"uid":1,"name":"Admin"}],"version":"1.2"}`))
	if err != nil {
		t.Fatalf("ParseSession: %v", err)
	}
	if !s.Has("user") || s.Has("layer") {
		t.Errorf("collections = %v", s.Collections)
	}
	if _, err := ParseSession([]byte(`[]`)); err == nil {
		t.Error("expected error for non-object session")
	}
}
