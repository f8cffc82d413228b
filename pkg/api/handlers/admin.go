package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"tanchat/pkg/config"
	"tanchat/pkg/maintenance"
	"tanchat/pkg/repair"
	"tanchat/pkg/utils"
)

// RegisterAdmin registers the administrative endpoints: repair sweep, log
// reset and the guarded batch delete.
func RegisterAdmin(r *mux.Router, cfg *config.Config, sweeper *repair.Sweeper) {
	r.HandleFunc("/admin/repair", runRepair(sweeper)).Methods(http.MethodPost)
	r.HandleFunc("/admin/reset", runReset(cfg)).Methods(http.MethodPost)
	r.HandleFunc("/admin/delete-batch", runDeleteBatch(cfg)).Methods(http.MethodPost)
}

func runRepair(sweeper *repair.Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := sweeper.Sweep()
		if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]int{"repaired": n})
	}
}

func runReset(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := maintenance.ResetLog(cfg.Chat.SeedAuthor, cfg.Chat.SeedBody); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

type deleteBatchRequest struct {
	IDs []string `json:"ids"`
}

func runDeleteBatch(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deleteBatchRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				utils.JSONError(w, http.StatusBadRequest, "invalid json")
				return
			}
		}
		if err := maintenance.DeleteLastBatch(req.IDs, cfg.Chat.DeleteBatch); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "done"})
	}
}
