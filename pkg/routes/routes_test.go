package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/clearance/pkg/routes"
)

func tagged(tag string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tag))
	}
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()

	routes.Register(mux,
		routes.Group{
			Prefix: "/shipments",
			Routes: []routes.Route{
				{Method: "GET", Pattern: "", Handler: tagged("list")},
				{Method: "GET", Pattern: "/{id}", Handler: tagged("find")},
			},
		},
		routes.Group{
			Children: []routes.Group{
				{
					Prefix: "/shipments/{id}",
					Routes: []routes.Route{
						{Method: "POST", Pattern: "/validate", Handler: tagged("validate")},
					},
				},
				{
					Prefix: "/validation",
					Routes: []routes.Route{
						{Method: "POST", Pattern: "/batch", Handler: tagged("batch")},
					},
				},
			},
		},
	)

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{"group root", "GET", "/shipments", http.StatusOK, "list"},
		{"group path value", "GET", "/shipments/abc", http.StatusOK, "find"},
		{"child under empty prefix", "POST", "/shipments/abc/validate", http.StatusOK, "validate"},
		{"sibling child", "POST", "/validation/batch", http.StatusOK, "batch"},
		{"method mismatch", "DELETE", "/shipments/abc", http.StatusMethodNotAllowed, ""},
		{"unregistered", "GET", "/overrides", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRegisterNestedPrefixes(t *testing.T) {
	mux := http.NewServeMux()

	routes.Register(mux, routes.Group{
		Prefix: "/api",
		Children: []routes.Group{
			{
				Prefix: "/documents",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "/{id}/history", Handler: tagged("history")},
				},
			},
		},
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/documents/d-1/history", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "history" {
		t.Errorf("nested route = %d %q, want 200 history", rec.Code, rec.Body.String())
	}
}
