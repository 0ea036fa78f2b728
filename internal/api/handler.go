package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"treasurySync/internal/indexer"
	"treasurySync/internal/model"
)

const maxRequestBody = 1 << 20

type handler struct {
	syncer Syncer
	health Pinger
	logger *zap.Logger
}

func (h *handler) syncTreasuryEvents(w http.ResponseWriter, r *http.Request) {
	var req model.SyncRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, model.SyncFailure{
			Success: false,
			Error:   "Invalid JSON body",
			Details: err.Error(),
			Code:    string(indexer.KindInvalidArgument),
		})
		return
	}

	started := time.Now()
	summary, err := h.syncer.Sync(r.Context(), req)
	if err != nil {
		failure := indexer.Failure(err)
		h.logger.Warn("sync request failed",
			zap.String("treasury_id", req.TreasuryID),
			zap.String("code", failure.Code),
			zap.Error(err),
		)
		writeJSON(w, statusFor(indexer.KindOf(err)), failure)
		return
	}

	result := summary.Result()
	h.logger.Info("sync request complete",
		zap.String("treasury_id", req.TreasuryID),
		zap.Uint64("synced_from", result.SyncedFrom),
		zap.Uint64("synced_to", result.SyncedTo),
		zap.Int("events", result.EventsProcessed),
		zap.Duration("took", time.Since(started)),
	)
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, model.SyncFailure{
		Success: false,
		Error:   "Method not allowed",
		Code:    string(indexer.KindInvalidArgument),
	})
}

func statusFor(kind indexer.Kind) int {
	switch kind {
	case indexer.KindInvalidArgument:
		return http.StatusBadRequest
	case indexer.KindRPCUnavailable:
		return http.StatusBadGateway
	case indexer.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case indexer.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
