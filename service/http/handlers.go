package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/dropworks/pooldrop/service/app"
)

// executeCaution is returned with every execute response. Once a drop is
// marked executed a failed signing submission is not rolled back, so blindly
// resubmitting could distribute twice.
const executeCaution = "If this request fails, confirm on chain that no transfer went through before submitting a new sign request. The pool drop is already marked as executed."

// Create a pool drop
func HandleCreatePoolDrop(logger *log.Logger, app *app.App) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		// Check body is not empty
		if err := checkNonEmptyBody(r); err != nil {
			handleError(rw, logger, err)
			return
		}

		var reqData ReqCreatePoolDrop

		// Decode JSON
		if err := json.NewDecoder(r.Body).Decode(&reqData); err != nil {
			handleError(rw, logger, err)
			return
		}

		pd, err := app.Create(r.Context(), bearerToken(r), reqData.ToApp())
		if err != nil {
			handleError(rw, logger, err)
			return
		}

		handleJsonResponse(rw, http.StatusCreated, ResPoolDropFromApp(pd))
	}
}

// Get pool drop details
func HandleGetPoolDrop(logger *log.Logger, app *app.App) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		pd, err := app.Get(r.Context(), vars["id"])
		if err != nil {
			handleError(rw, logger, err)
			return
		}

		handleJsonResponse(rw, http.StatusOK, ResPoolDropFromApp(pd))
	}
}

// List the signed-in creator's active pool drops
func HandleListActivePoolDrops(logger *log.Logger, app *app.App) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ids, err := app.ListActive(r.Context(), bearerToken(r), r.FormValue("currency"))
		if err != nil {
			handleError(rw, logger, err)
			return
		}

		handleJsonResponse(rw, http.StatusOK, ResListActivePoolDrops{PoolDropIDs: ids})
	}
}

// Claim one share of a pool drop
func HandleClaimPoolDrop(logger *log.Logger, app *app.App) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if err := checkNonEmptyBody(r); err != nil {
			handleError(rw, logger, err)
			return
		}

		var reqData ReqClaimPoolDrop

		if err := json.NewDecoder(r.Body).Decode(&reqData); err != nil {
			handleError(rw, logger, err)
			return
		}

		vars := mux.Vars(r)

		pd, err := app.Claim(r.Context(), reqData.Token, vars["id"])
		if err != nil {
			handleError(rw, logger, err)
			return
		}

		handleJsonResponse(rw, http.StatusOK, ResPoolDropFromApp(pd))
	}
}

// Cancel a pool drop
func HandleCancelPoolDrop(logger *log.Logger, app *app.App) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		pd, err := app.Cancel(r.Context(), bearerToken(r), vars["id"])
		if err != nil {
			handleError(rw, logger, err)
			return
		}

		handleJsonResponse(rw, http.StatusOK, ResPoolDropFromApp(pd))
	}
}

// Execute a pool drop: build the calls and submit them for signing
func HandleExecutePoolDrop(logger *log.Logger, app *app.App) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if err := checkNonEmptyBody(r); err != nil {
			handleError(rw, logger, err)
			return
		}

		var reqData ReqExecutePoolDrop

		if err := json.NewDecoder(r.Body).Decode(&reqData); err != nil {
			handleError(rw, logger, err)
			return
		}

		vars := mux.Vars(r)

		requestID, err := app.Execute(r.Context(), reqData.Token, vars["id"])
		if err != nil {
			handleError(rw, logger, err)
			return
		}

		res := ResExecutePoolDrop{
			RequestID: requestID,
			Caution:   executeCaution,
		}

		handleJsonResponse(rw, http.StatusOK, res)
	}
}

// Record the transaction ids reported back by the signing callback
func HandleAttachTransactions(logger *log.Logger, app *app.App) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if err := checkNonEmptyBody(r); err != nil {
			handleError(rw, logger, err)
			return
		}

		var reqData ReqAttachTransactions

		if err := json.NewDecoder(r.Body).Decode(&reqData); err != nil {
			handleError(rw, logger, err)
			return
		}

		vars := mux.Vars(r)

		pd, err := app.AttachTransactionIDs(r.Context(), vars["id"], reqData.TransactionIDs)
		if err != nil {
			handleError(rw, logger, err)
			return
		}

		handleJsonResponse(rw, http.StatusOK, ResPoolDropFromApp(pd))
	}
}

func HandleHealthReady() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	}
}
