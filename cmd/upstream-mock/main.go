// Command upstream-mock serves canned barcode and movie-metadata responses
// for local development without API keys.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
)

type movieFixture struct {
	Details json.RawMessage `json:"details"`
	Credits json.RawMessage `json:"credits"`
}

type fixtures struct {
	Products map[string][]json.RawMessage `json:"products"`
	Searches map[string][]json.RawMessage `json:"searches"`
	Movies   map[string]movieFixture      `json:"movies"`
}

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "mock-upstream.json", "path to mock data file")
		apiKey  = flag.String("api-key", "", "metadata api_key to require (empty accepts any)")
		logReqs = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	file, err := os.ReadFile(*data)
	if err != nil {
		log.Fatalf("read mock data: %v", err)
	}

	var payload fixtures
	if err := json.Unmarshal(file, &payload); err != nil {
		log.Fatalf("parse mock data: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /upc", func(w http.ResponseWriter, r *http.Request) {
		items := payload.Products[r.URL.Query().Get("upc")]
		if items == nil {
			items = []json.RawMessage{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"code": "OK", "total": len(items), "items": items})
	})
	mux.HandleFunc("GET /search/movie", requireKey(*apiKey, func(w http.ResponseWriter, r *http.Request) {
		results := payload.Searches[strings.ToLower(r.URL.Query().Get("query"))]
		if results == nil {
			results = []json.RawMessage{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"page": 1, "results": results, "total_results": len(results)})
	}))
	mux.HandleFunc("GET /movie/{id}", requireKey(*apiKey, func(w http.ResponseWriter, r *http.Request) {
		movie, ok := payload.Movies[r.PathValue("id")]
		if !ok || movie.Details == nil {
			writeNotFound(w)
			return
		}
		writeJSON(w, http.StatusOK, movie.Details)
	}))
	mux.HandleFunc("GET /movie/{id}/credits", requireKey(*apiKey, func(w http.ResponseWriter, r *http.Request) {
		movie, ok := payload.Movies[r.PathValue("id")]
		if !ok || movie.Credits == nil {
			writeNotFound(w)
			return
		}
		writeJSON(w, http.StatusOK, movie.Credits)
	}))

	var handler http.Handler = mux
	if *logReqs {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			mux.ServeHTTP(w, r)
		})
	}

	addr := ":" + *port
	log.Printf("mock upstreams listening on %s (%d products, %d movies)", addr, len(payload.Products), len(payload.Movies))
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func requireKey(key string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if key != "" && r.URL.Query().Get("api_key") != key {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"status_code": 7, "status_message": "Invalid API key: You must be granted a valid key."})
			return
		}
		next(w, r)
	}
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"status_code": 34, "status_message": "The resource you requested could not be found."})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
