package http

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/dropworks/pooldrop/service/app"
)

func NewRouter(logger *log.Logger, app *app.App) http.Handler {
	r := mux.NewRouter()

	if logger == nil {
		logger = log.New()
	}

	// Catch the api version
	rv := r.PathPrefix("/{apiVersion}").Subrouter()

	rv.HandleFunc("/health/ready", HandleHealthReady()).Methods(http.MethodGet)

	rv.HandleFunc("/pooldrops", HandleCreatePoolDrop(logger, app)).Methods(http.MethodPost)
	rv.HandleFunc("/pooldrops", HandleListActivePoolDrops(logger, app)).Methods(http.MethodGet)
	rv.HandleFunc("/pooldrops/{id}", HandleGetPoolDrop(logger, app)).Methods(http.MethodGet)
	rv.HandleFunc("/pooldrops/{id}/claims", HandleClaimPoolDrop(logger, app)).Methods(http.MethodPost)
	rv.HandleFunc("/pooldrops/{id}/cancel", HandleCancelPoolDrop(logger, app)).Methods(http.MethodPost)
	rv.HandleFunc("/pooldrops/{id}/execute", HandleExecutePoolDrop(logger, app)).Methods(http.MethodPost)
	rv.HandleFunc("/pooldrops/{id}/transactions", HandleAttachTransactions(logger, app)).Methods(http.MethodPatch)

	// Use middleware
	h := UseCors(r)
	h = UseLogging(logger.Writer(), h)
	h = UseCompress(h)
	h = UseJson(h)

	return h
}
