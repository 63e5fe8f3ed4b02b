package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

type joinBody struct {
	Quantity int `json:"quantity"`
}

type poolBody struct {
	ProductID     string `json:"productId"`
	TotalQuantity int    `json:"totalQuantity"`
}

// joinEcho отвечает пулом с количеством из тела запроса на вступление.
func joinEcho(w http.ResponseWriter, r *http.Request) {
	var req joinBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation", "malformed request body", false)
		return
	}
	if req.Quantity > 50 {
		WriteError(w, http.StatusConflict, "pool_closed", "pool reached the maximum tier and is closed", false)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(poolBody{ProductID: "watch", TotalQuantity: req.Quantity})
}

func gzipped(t *testing.T, s string) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(s)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return &buf
}

func readBody(t *testing.T, res *http.Response) []byte {
	t.Helper()
	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(res.Body)
		if err != nil {
			t.Fatalf("new gzip reader: %v", err)
		}
		defer gr.Close()
		r = gr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return body
}

func TestGzipMiddleware_JoinBody(t *testing.T) {
	tests := []struct {
		name           string
		compressedIn   bool
		acceptEncoding string
		wantEncoding   string
		wantTotal      int
	}{
		{name: "compressed join, compressed pool", compressedIn: true, acceptEncoding: "gzip", wantEncoding: "gzip", wantTotal: 7},
		{name: "plain join, compressed pool", acceptEncoding: "br, gzip", wantEncoding: "gzip", wantTotal: 12},
		{name: "compressed join, plain pool", compressedIn: true, wantTotal: 3},
		{name: "plain join, plain pool", wantTotal: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"quantity":` + strconv.Itoa(tt.wantTotal) + `}`

			var body io.Reader = strings.NewReader(payload)
			if tt.compressedIn {
				body = gzipped(t, payload)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/groups/watch/join", body)
			req.Header.Set("Content-Type", "application/json")
			if tt.compressedIn {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}

			w := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(joinEcho)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				t.Fatalf("status: got %d want %d", res.StatusCode, http.StatusOK)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.wantEncoding)
			}
			if tt.wantEncoding != "" && res.Header.Get("Vary") != "Accept-Encoding" {
				t.Fatalf("vary: got %q", res.Header.Get("Vary"))
			}

			var pool poolBody
			if err := json.Unmarshal(readBody(t, res), &pool); err != nil {
				t.Fatalf("decode pool: %v", err)
			}
			if pool.ProductID != "watch" || pool.TotalQuantity != tt.wantTotal {
				t.Fatalf("pool = %+v, want total %d", pool, tt.wantTotal)
			}
		})
	}
}

func TestGzipMiddleware_CompressesErrorBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/groups/watch/join", gzipped(t, `{"quantity":60}`))
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")

	w := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(joinEcho)).ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status: got %d want %d", res.StatusCode, http.StatusConflict)
	}

	var body ErrorBody
	if err := json.Unmarshal(readBody(t, res), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Code != "pool_closed" {
		t.Fatalf("code = %q, want pool_closed", body.Error.Code)
	}
}

func TestGzipMiddleware_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/groups/watch/join", strings.NewReader(`{"quantity":3}`))
	req.Header.Set("Content-Encoding", "gzip")

	w := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusBadRequest)
	}
	if !strings.Contains(w.Body.String(), `"code":"validation"`) {
		t.Fatalf("body %q is not a validation error", w.Body.String())
	}
}
