package llama

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chriskillpack/imgcap/describer"
)

func TestDescribeImage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if expected, actual := "/completion", r.URL.Path; expected != actual {
			t.Errorf("Expected path %q, got %q", expected, actual)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Bad request body %s", err)
		}
		w.Write([]byte(`{"content": " A red barn", "stop": false}` + "\n\n"))
		w.Write([]byte(`{"content": " in a field.", "stop": true}` + "\n"))
	}))
	defer srv.Close()

	l := Init(srv.URL, 1234, srv.Client())
	caption, err := l.DescribeImage(t.Context(), &describer.Image{Data: []byte("jpeg"), Format: "jpeg"}, 32)
	if err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if expected, actual := "A red barn in a field.", caption; expected != actual {
		t.Errorf("Expected caption %q, got %q", expected, actual)
	}

	if expected, actual := float64(32), got["n_predict"]; expected != actual {
		t.Errorf("Expected n_predict %v, got %v", expected, actual)
	}
	if expected, actual := float64(1234), got["seed"]; expected != actual {
		t.Errorf("Expected seed %v, got %v", expected, actual)
	}
	if _, ok := got["image_data"]; !ok {
		t.Errorf("Expected image_data in request")
	}
}

func TestDescribeImageTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content": "half", "stop": false}` + "\n"))
	}))
	defer srv.Close()

	l := Init(srv.URL, 0, srv.Client())
	if _, err := l.DescribeImage(t.Context(), &describer.Image{}, 10); err == nil {
		t.Errorf("Expected error for response without stop")
	}
}

func TestIsHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	if !Init(srv.URL, 0, srv.Client()).IsHealthy(t.Context()) {
		t.Errorf("Expected healthy server")
	}
}
