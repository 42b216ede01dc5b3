package adaptor

import (
	"encoding/json"
	"net"
	"net/http"

	"mfa-service/pkg/utils"

	"go.uber.org/zap"
)

// handleServiceError maps domain failures to their status and hides
// everything else behind a 500
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	if de, ok := utils.AsDomainError(err); ok {
		log.Warn(operation+" failed",
			zap.Int("status", de.Status),
			zap.String("reason", de.Message),
		)
		utils.ResponseDomainError(w, de)
		return
	}

	log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
	utils.ResponseInternalError(w, "Internal server error")
}

// decodeAndValidate writes the 400 itself and reports false on failure
const maxBodyBytes = 1 << 20

func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return false
	}

	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
