// Package handlers agrupa handlers HTTP administrativos e de exemplo.
package handlers

import (
	"net/http"
)

// PingHandler responde com uma mensagem simples para verificar a admissão.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"message": "Request successful"})
}
