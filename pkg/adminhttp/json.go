package adminhttp

import (
	"encoding/json"
	"net/http"

	"github.com/holo-host/hpos-core/pkg/log"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("adminhttp: encoding response", err)
	}
}
