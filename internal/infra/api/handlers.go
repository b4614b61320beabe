package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"adalbertofjr/chat-relay/relay/ratelimiter"
)

// Snapshotter lists the clients currently in the rate limiter table.
type Snapshotter interface {
	Snapshot() ([]ratelimiter.ClientRecord, error)
}

// NewRouter serves GET /health and GET /clients.
func NewRouter(clients Snapshotter) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/clients", ClientsHandler(clients)).Methods(http.MethodGet)
	return r
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"OK"}`))
}

func ClientsHandler(clients Snapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := clients.Snapshot()
		if err != nil {
			log.Printf("Error listing clients: %v\n", err)
			http.Error(w, `{"error":"unable to list clients"}`, http.StatusInternalServerError)
			return
		}
		sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			log.Printf("Error encoding clients: %v\n", err)
		}
	}
}
