package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/server/reconcile"
	"github.com/iudanet/opsync/internal/server/storage"
	"github.com/iudanet/opsync/pkg/api"
)

// maxBatchBodyBytes ограничивает размер тела запроса синхронизации
const maxBatchBodyBytes = 8 << 20

//go:generate moq -out reconciler_mock.go . Reconciler

// Reconciler определяет операции сервиса сверки, нужные обработчикам
type Reconciler interface {
	ProcessBatch(ctx context.Context, ops []*models.Operation, deviceID string) ([]api.Result, error)
	Resolve(ctx context.Context, operationID, deviceID string, resolution models.Resolution) (*models.ResolutionRecord, error)
	DeviceStatus(ctx context.Context, deviceID string) (*models.DeviceStatus, error)
}

// SyncHandler handles batch reconciliation, conflict resolution and device status requests
type SyncHandler struct {
	logger  *slog.Logger
	service Reconciler
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, service Reconciler) *SyncHandler {
	return &SyncHandler{
		logger:  logger,
		service: service,
	}
}

// HandleBatch обрабатывает POST /api/v1/sync/batch.
// Ответ 200 даже если отдельные операции отклонены: исход каждой в Results.
func (h *SyncHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req api.ReconcileRequest
	if !h.decode(w, r, &req) {
		return
	}

	deviceID, ok := h.authorizeDevice(w, r, req.DeviceID)
	if !ok {
		return
	}

	h.logger.Info("Sync batch request", "device_id", deviceID, "operations", len(req.Operations))

	results, err := h.service.ProcessBatch(r.Context(), req.Operations, deviceID)
	if err != nil {
		h.writeServiceError(w, err, "device_id", deviceID)
		return
	}

	WriteJSON(w, h.logger, http.StatusOK, api.ReconcileResponse{Results: results})
}

// HandleResolve обрабатывает POST /api/v1/sync/resolve
func (h *SyncHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req api.ResolveRequest
	if !h.decode(w, r, &req) {
		return
	}

	deviceID, ok := h.authorizeDevice(w, r, req.DeviceID)
	if !ok {
		return
	}

	rec, err := h.service.Resolve(r.Context(), req.OperationID, deviceID, req.Resolution)
	if err != nil {
		h.writeServiceError(w, err, "device_id", deviceID, "operation_id", req.OperationID)
		return
	}

	WriteJSON(w, h.logger, http.StatusOK, api.ResolveResponse{
		OperationID:  rec.OperationID,
		Resolution:   rec.Resolution,
		Acknowledged: true,
	})
}

// HandleDeviceStatus обрабатывает GET /api/v1/devices/{deviceID}
func (h *SyncHandler) HandleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("deviceID")
	if deviceID == "" {
		WriteError(w, h.logger, http.StatusBadRequest, "device id is required", "")
		return
	}

	status, err := h.service.DeviceStatus(r.Context(), deviceID)
	if errors.Is(err, storage.ErrDeviceNotFound) {
		WriteError(w, h.logger, http.StatusNotFound, "device not found", deviceID)
		return
	}
	if err != nil {
		h.logger.Error("Failed to get device status", "device_id", deviceID, "error", err)
		WriteError(w, h.logger, http.StatusInternalServerError, "internal server error", "")
		return
	}

	WriteJSON(w, h.logger, http.StatusOK, api.DeviceStatusResponse{
		DeviceID:       status.DeviceID,
		LastSyncAt:     status.LastSyncAt,
		OperationCount: status.OperationCount,
		ConflictCount:  status.ConflictCount,
	})
}

func (h *SyncHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBatchBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		h.logger.Warn("Failed to decode request", "path", r.URL.Path, "error", err)

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, h.logger, http.StatusRequestEntityTooLarge, "request body too large", "")
			return false
		}
		WriteError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// authorizeDevice сверяет device_id из тела с устройством из токена.
// Без аутентификации используется device_id из тела.
func (h *SyncHandler) authorizeDevice(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	authenticated, ok := GetDeviceID(r.Context())
	if !ok {
		if requested == "" {
			WriteError(w, h.logger, http.StatusBadRequest, "device_id is required", "")
			return "", false
		}
		return requested, true
	}

	if requested != "" && requested != authenticated {
		h.logger.Warn("Device id mismatch", "token_device_id", authenticated, "request_device_id", requested)
		WriteError(w, h.logger, http.StatusForbidden, "device_id mismatch", "")
		return "", false
	}
	return authenticated, true
}

func (h *SyncHandler) writeServiceError(w http.ResponseWriter, err error, attrs ...any) {
	switch {
	case errors.Is(err, reconcile.ErrInvalidRequest):
		h.logger.Warn("Rejected request", append(attrs, "error", err)...)
		WriteError(w, h.logger, http.StatusBadRequest, "invalid request", err.Error())
		return
	case errors.Is(err, reconcile.ErrConflictNotReported), errors.Is(err, reconcile.ErrOperationAccepted):
		h.logger.Warn("Rejected resolution", append(attrs, "error", err)...)
		WriteError(w, h.logger, http.StatusConflict, "resolution rejected", err.Error())
		return
	}

	h.logger.Error("Request failed", append(attrs, "error", err)...)
	WriteError(w, h.logger, http.StatusInternalServerError, "internal server error", "")
}
