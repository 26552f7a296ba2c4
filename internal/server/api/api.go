// Package api exposes the collector's HTTP surface: ingestion of device
// samples and status queries for the dashboard. Responses use a uniform
// envelope so consumers can render them without further computation.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"hostpulse/internal/server/service"
	"hostpulse/internal/server/store"
	"hostpulse/pkg/wire"
)

// maxBodyBytes caps submission bodies; a sample is a few kB at most.
const maxBodyBytes = 1 << 20

type envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// Handler serves the device API.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter().StrictSlash(true)

	r.HandleFunc("/api/devices/", h.listDevices).Methods(http.MethodGet)
	r.HandleFunc("/api/devices/", h.createDevice).Methods(http.MethodPost)
	r.HandleFunc("/api/devices/", h.updateDevice).Methods(http.MethodPatch)
	r.HandleFunc("/api/devices/{device_id}/", h.getDevice).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	return r
}

func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	states, err := h.svc.Devices(r.Context())
	if err != nil {
		h.serverError(w, "Failed to list devices", err)
		return
	}
	h.write(w, http.StatusOK, envelope{
		Status:  "success",
		Message: "Devices retrieved successfully",
		Data:    states,
	})
}

func (h *Handler) getDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["device_id"]

	state, err := h.svc.Device(r.Context(), deviceID)
	if errors.Is(err, store.ErrNotFound) {
		h.write(w, http.StatusNotFound, envelope{Status: "error", Message: "Device not found"})
		return
	}
	if err != nil {
		h.serverError(w, "Failed to retrieve device", err)
		return
	}

	h.write(w, http.StatusOK, envelope{
		Status:  "success",
		Message: "Device retrieved successfully",
		Data:    state,
	})
}

func (h *Handler) createDevice(w http.ResponseWriter, r *http.Request) {
	sample, ok := h.decode(w, r)
	if !ok {
		return
	}

	err := h.svc.Create(r.Context(), sample)
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		h.write(w, http.StatusBadRequest, envelope{
			Status:  "error",
			Message: "Device creation failed",
			Errors:  verr.Reason,
		})
	case errors.Is(err, service.ErrDeviceExists):
		h.write(w, http.StatusConflict, envelope{Status: "error", Message: "Device already exists"})
	case err != nil:
		h.serverError(w, "Failed to create device", err)
	default:
		h.write(w, http.StatusCreated, envelope{
			Status:  "success",
			Message: "Device and metrics created successfully",
		})
	}
}

func (h *Handler) updateDevice(w http.ResponseWriter, r *http.Request) {
	sample, ok := h.decode(w, r)
	if !ok {
		return
	}

	applied, err := h.svc.Update(r.Context(), sample)
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		h.write(w, http.StatusBadRequest, envelope{
			Status:  "error",
			Message: "Device update failed",
			Errors:  verr.Reason,
		})
	case errors.Is(err, service.ErrUnknownDevice):
		h.write(w, http.StatusNotFound, envelope{Status: "error", Message: "Device not found"})
	case err != nil:
		h.serverError(w, "Failed to update device", err)
	case !applied:
		// Retries over an unreliable network reorder submissions; an older
		// sample is acknowledged but leaves the stored state alone.
		h.write(w, http.StatusOK, envelope{
			Status:  "success",
			Message: "Stale submission ignored",
		})
	default:
		h.write(w, http.StatusOK, envelope{
			Status:  "success",
			Message: "Device and metrics updated successfully",
		})
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, envelope{Status: "success", Message: "ok"})
}

// decode parses a submission body. A malformed body is a client error and
// never reaches the service.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (wire.Sample, bool) {
	var sample wire.Sample
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&sample); err != nil {
		h.logger.Warn("Malformed submission body", zap.Error(err))
		h.write(w, http.StatusBadRequest, envelope{
			Status:  "error",
			Message: "Malformed request body",
			Errors:  err.Error(),
		})
		return wire.Sample{}, false
	}
	return sample, true
}

func (h *Handler) serverError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, zap.Error(err))
	h.write(w, http.StatusInternalServerError, envelope{Status: "error", Message: message})
}

func (h *Handler) write(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
