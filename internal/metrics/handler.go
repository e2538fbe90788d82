package metrics

import (
	"context"
	"encoding/json"
	"net/http"
)

// SnapshotProvider abstracts Manager for testing.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (map[string]int64, map[string]durationAgg, error)
}

// Handler returns an http.HandlerFunc that writes a JSON metrics snapshot.
// If token is non-empty, requests must include Authorization: Bearer <token>.
func Handler(provider SnapshotProvider, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			hdr := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(hdr) <= len(prefix) || hdr[:len(prefix)] != prefix || hdr[len(prefix):] != token {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		counters, durations, err := provider.Snapshot(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		outDurations := make(map[string]map[string]int64, len(durations))
		for name, agg := range durations {
			outDurations[name] = map[string]int64{
				"count": agg.count,
				"sum":   agg.sum,
				"min":   agg.min,
				"max":   agg.max,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"counters":  counters,
			"durations": outDurations,
		})
	}
}
