package http

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"push-relay/internal/domain"
)

type DeviceHandler struct {
	registry domain.DeviceRegistry
}

func NewDeviceHandler(registry domain.DeviceRegistry) *DeviceHandler {
	return &DeviceHandler{registry: registry}
}

type RegisterDeviceRequest struct {
	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId"`
	Platform string `json:"platform"`
	FCMToken string `json:"fcmToken"`
}

type RegisterDeviceResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId"`
}

type StatusResponse struct {
	UserID        string                `json:"userId"`
	Devices       []domain.DeviceStatus `json:"devices"`
	ActiveDevices int                   `json:"activeDevices"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Register handles POST /register-device
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if req.UserID == "" || req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "userId and deviceId are required")
		return
	}
	if req.Platform == "" {
		req.Platform = "unknown"
	}

	if err := h.registry.RegisterDevice(req.UserID, req.DeviceID, req.Platform, strings.TrimSpace(req.FCMToken)); err != nil {
		respondError(w, r, err)
		return
	}

	hlog.FromRequest(r).Info().
		Str("user_id", req.UserID).
		Str("device_id", req.DeviceID).
		Str("platform", req.Platform).
		Bool("has_token", req.FCMToken != "").
		Msg("device registered")

	writeJSON(w, http.StatusOK, RegisterDeviceResponse{
		Success:  true,
		Message:  "Device registered successfully",
		UserID:   req.UserID,
		DeviceID: req.DeviceID,
	})
}

// Status handles GET /status/{userId}
func (h *DeviceHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	status := h.registry.Status(userID)

	writeJSON(w, http.StatusOK, StatusResponse{
		UserID:        userID,
		Devices:       status.Devices,
		ActiveDevices: status.ActiveCount,
	})
}

// Remove handles DELETE /device/{userId}/{deviceId}. Unknown devices still succeed.
func (h *DeviceHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	deviceID := r.PathValue("deviceId")
	h.registry.RemoveDevice(userID, deviceID)

	hlog.FromRequest(r).Info().Str("user_id", userID).Str("device_id", deviceID).Msg("device removed")
	writeJSON(w, http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Device removed successfully",
	})
}
