package households

import (
	"encoding/json"
	"net/http"

	"github.com/rs/cors"

	"github.com/kilianp07/nbhdsim/core/model"
	"github.com/kilianp07/nbhdsim/core/sim"
)

// Source provides the latest neighborhood state.
type Source interface {
	Snapshot() sim.Snapshot
}

// NewHouseholdsHandler returns an HTTP handler exposing per-household
// outputs via GET /api/households. The optional type query parameter keeps
// only households of that type.
func NewHouseholdsHandler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		outs := src.Snapshot().Households
		if t := r.URL.Query().Get("type"); t != "" {
			ht := model.HouseholdType(t)
			if !ht.Valid() {
				http.Error(w, "unknown household type "+t, http.StatusBadRequest)
				return
			}
			filtered := make([]sim.HouseholdOutput, 0, len(outs))
			for _, o := range outs {
				if o.Type == ht {
					filtered = append(filtered, o)
				}
			}
			outs = filtered
		}
		writeJSON(w, outs)
	})
}

// NewNeighborhoodHandler returns an HTTP handler exposing the aggregate via
// GET /api/neighborhood.
func NewNeighborhoodHandler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s := src.Snapshot()
		writeJSON(w, struct {
			NeighborhoodID string        `json:"neighborhood_id"`
			Households     int           `json:"households"`
			Aggregate      sim.Aggregate `json:"aggregate"`
		}{s.NeighborhoodID, len(s.Households), s.Aggregate})
	})
}

// NewRouter mounts both handlers behind CORS for allowedOrigins.
func NewRouter(src Source, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/households", NewHouseholdsHandler(src))
	mux.Handle("/api/neighborhood", NewNeighborhoodHandler(src))
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	})
	return c.Handler(mux)
}

// writeJSON encodes v fully before touching the response so an encoding
// failure still yields a clean 500.
func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(append(b, '\n'))
}
