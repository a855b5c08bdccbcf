package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"
)

// respondWithError writes userMsg with status. A non-nil err is logged under
// logMsg: at warn level for client errors, error level otherwise.
func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		if status < http.StatusInternalServerError {
			log.Warn(logMsg, "status", status, "error", err)
		} else {
			log.Error(logMsg, "status", status, "error", err)
		}
	}

	http.Error(w, userMsg, status)
}
