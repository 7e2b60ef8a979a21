package utils

import (
	"encoding/json"
	"net/http"

	"pong/internal/models"
)

func WriteJSON(w http.ResponseWriter, code int, resp models.Resp) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, models.Resp{OK: false, Info: msg})
}
