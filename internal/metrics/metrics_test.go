package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func requestSeries(t *testing.T) map[string]float64 {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	series := map[string]float64{}
	for _, fam := range families {
		if fam.GetName() != "imagestudio_http_requests_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			var path string
			for _, l := range m.GetLabel() {
				if l.GetName() == "path" {
					path = l.GetValue()
				}
			}
			series[path] += m.GetCounter().GetValue()
		}
	}
	return series
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/static/*", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/v1/generations/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/static/generations/u/%d.webp", i), nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/generations/abc-123", nil))

	series := requestSeries(t)
	if got := series["/static/*"]; got != 5 {
		t.Fatalf("static series count = %v, want 5", got)
	}
	if got := series["/v1/generations/{id}"]; got != 1 {
		t.Fatalf("generations series count = %v, want 1", got)
	}
	for path := range series {
		if path != "/static/*" && path != "/v1/generations/{id}" && path != "unmatched" {
			t.Fatalf("unexpected raw path label %q", path)
		}
	}
}

func TestMiddlewareOutsideRouterUsesUnmatchedLabel(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anything/goes", nil))

	series := requestSeries(t)
	if series["unmatched"] < 1 {
		t.Fatalf("unmatched series count = %v, want >= 1", series["unmatched"])
	}
	if _, ok := series["/anything/goes"]; ok {
		t.Fatal("raw path leaked into labels")
	}
}
