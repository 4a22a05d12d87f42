package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	gorilla "github.com/gorilla/handlers"
	log "github.com/sirupsen/logrus"

	svcerrors "github.com/dropworks/pooldrop/service/errors"
)

func UseCors(h http.Handler) http.Handler {
	return gorilla.CORS(gorilla.AllowedOrigins([]string{"*"}))(h)
}

func UseLogging(out io.Writer, h http.Handler) http.Handler {
	return gorilla.CombinedLoggingHandler(out, h)
}

func UseCompress(h http.Handler) http.Handler {
	return gorilla.CompressHandler(h)
}

func UseJson(h http.Handler) http.Handler {
	// Only PUT, POST, and PATCH requests are considered.
	return gorilla.ContentTypeHandler(h, "application/json")
}

// handleError is a helper function for unified HTTP error handling.
func handleError(rw http.ResponseWriter, logger *log.Logger, err error) {
	if logger != nil {
		logger.Printf("Error: %v\n", err)
	}

	status := http.StatusBadRequest

	switch {
	case errors.Is(err, svcerrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, svcerrors.ErrNotCreator), errors.Is(err, svcerrors.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, svcerrors.ErrVersionConflict),
		errors.Is(err, svcerrors.ErrDuplicateClaim),
		errors.Is(err, svcerrors.ErrPoolDropFull),
		errors.Is(err, svcerrors.ErrAlreadyCancelled),
		errors.Is(err, svcerrors.ErrAlreadyExecuted),
		errors.Is(err, svcerrors.ErrDuplicateID):
		status = http.StatusConflict
	case svcerrors.IsChain(err):
		status = http.StatusBadGateway
	}

	handleJsonResponse(rw, status, map[string]string{"error": err.Error()})
}

// handleJsonResponse is a helper function for unified JSON response handling.
func handleJsonResponse(rw http.ResponseWriter, status int, res interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(res)
}

func checkNonEmptyBody(r *http.Request) error {
	if r.Body == nil || r.Body == http.NoBody {
		return fmt.Errorf("empty body")
	}
	return nil
}

// bearerToken extracts the session token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
