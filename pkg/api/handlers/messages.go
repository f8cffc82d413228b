package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"tanchat/pkg/dispatch"
	"tanchat/pkg/logger"
	"tanchat/pkg/models"
	"tanchat/pkg/store"
	"tanchat/pkg/utils"
	"tanchat/pkg/window"
)

const defaultListLimit = 100

// RegisterMessages registers the message endpoints.
func RegisterMessages(r *mux.Router, d *dispatch.Dispatcher) {
	r.HandleFunc("/messages", postMessage(d)).Methods(http.MethodPost)
	r.HandleFunc("/messages", listMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", patchMessage).Methods(http.MethodPatch)
}

type postRequest struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

func postMessage(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req postRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(req.Body) == "" {
			utils.JSONError(w, http.StatusBadRequest, "body is required")
			return
		}
		if req.Author == "" {
			req.Author = "anonymous"
		}
		if err := d.HandlePost(req.Author, req.Body); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, dispatch.ErrBadCommand) {
				status = http.StatusBadRequest
			}
			utils.JSONError(w, status, err.Error())
			return
		}
		logger.Info("message_posted", "author", req.Author, "body_len", len(req.Body))
		_ = utils.JSONWrite(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

func listMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim > 0 {
			limit = lim
		}
	}
	msgs, err := window.Select(limit)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	logger.Debug("messages_list", "count", len(msgs))
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Messages []models.Message `json:"messages"`
	}{Messages: msgs})
}

func getMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m, err := store.Get(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

type patchRequest struct {
	Body     *string `json:"body"`
	Complete *bool   `json:"complete"`
}

// patchMessage is the internal update path used by operators; live
// generation patches go through the store directly.
func patchMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Body == nil && req.Complete == nil {
		utils.JSONError(w, http.StatusBadRequest, "nothing to patch")
		return
	}
	if err := store.Patch(id, req.Body, req.Complete); err != nil {
		utils.JSONError(w, http.StatusNotFound, err.Error())
		return
	}
	m, err := store.Get(id)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}
