package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carwatch/models"
)

func testRecord() models.Record {
	return models.Record{
		URL: "https://catalog.example/item/1/details",
		Info: models.Fields{
			{Key: "Fuel type", Value: "diesel"},
			{Key: "Mileage", Value: "120000 km"},
		},
		DetailsList: []string{"Tow bar"},
		DetailsText: "well maintained",
	}
}

func TestHTTPScorer_Score(t *testing.T) {
	var gotReq scoreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(scoreResponse{Score: 0.87})
	}))
	defer srv.Close()

	s := NewHTTPScorer(srv.URL, 0)
	score, err := s.Score(context.Background(), "diesel kombi", testRecord())
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != 0.87 {
		t.Errorf("Score() = %f, want 0.87", score)
	}
	if gotReq.Query != "diesel kombi" {
		t.Errorf("request query = %q, want %q", gotReq.Query, "diesel kombi")
	}
	if !strings.Contains(gotReq.Text, "Fuel type: diesel") {
		t.Errorf("request text %q is missing the record description", gotReq.Text)
	}
}

func TestHTTPScorer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) },
		},
		{
			name: "score out of range",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(scoreResponse{Score: 1.5})
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			s := NewHTTPScorer(srv.URL, 0)
			if _, err := s.Score(context.Background(), "q", testRecord()); err == nil {
				t.Error("Score() error = nil, want error")
			}
		})
	}
}
