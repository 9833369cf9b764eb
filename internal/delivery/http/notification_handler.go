package http

import (
	"net/http"
	"strconv"

	"push-relay/internal/domain"
	"push-relay/internal/usecase"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type NotificationHandler struct {
	uc  *usecase.NotificationUsecase
	log domain.NotificationLog
}

func NewNotificationHandler(uc *usecase.NotificationUsecase, log domain.NotificationLog) *NotificationHandler {
	return &NotificationHandler{uc: uc, log: log}
}

type SendNotificationRequest struct {
	UserID string         `json:"userId"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   map[string]any `json:"data"`
	Type   string         `json:"type"`
}

type SendBulkNotificationRequest struct {
	UserIDs []string       `json:"userIds"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data"`
	Type    string         `json:"type"`
}

type SendNotificationResponse struct {
	Success       bool                  `json:"success"`
	Message       string                `json:"message"`
	SentToDevices int                   `json:"sentToDevices"`
	Notifications []domain.Notification `json:"notifications"`
	Push          *domain.PushSummary   `json:"push,omitempty"`
}

type SendBulkNotificationResponse struct {
	Success       bool                  `json:"success"`
	Message       string                `json:"message"`
	TotalUsers    int                   `json:"totalUsers"`
	SentToDevices int                   `json:"sentToDevices"`
	Notifications []domain.Notification `json:"notifications"`
	Push          *domain.PushSummary   `json:"push,omitempty"`
}

type HistoryResponse struct {
	UserID        string                `json:"userId"`
	Notifications []domain.Notification `json:"notifications"`
}

// Send handles POST /send-notification
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	res, err := h.uc.SendToUser(r.Context(), usecase.SendRequest{
		UserID: req.UserID,
		Title:  req.Title,
		Body:   req.Body,
		Data:   req.Data,
		Type:   req.Type,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SendNotificationResponse{
		Success:       true,
		Message:       "Notification sent to " + pluralDevices(res.SentCount),
		SentToDevices: res.SentCount,
		Notifications: res.Notifications,
		Push:          res.Push,
	})
}

// SendBulk handles POST /send-bulk-notification
func (h *NotificationHandler) SendBulk(w http.ResponseWriter, r *http.Request) {
	var req SendBulkNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	res, err := h.uc.SendToUsers(r.Context(), usecase.BulkSendRequest{
		UserIDs: req.UserIDs,
		Title:   req.Title,
		Body:    req.Body,
		Data:    req.Data,
		Type:    req.Type,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SendBulkNotificationResponse{
		Success:       true,
		Message:       "Bulk notification sent to " + strconv.Itoa(res.TotalUsers) + " users (" + pluralDevices(res.SentToDevices) + ")",
		TotalUsers:    res.TotalUsers,
		SentToDevices: res.SentToDevices,
		Notifications: res.Notifications,
		Push:          res.Push,
	})
}

// History handles GET /notifications/{userId}?limit=N
func (h *NotificationHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.log.Recent(r.Context(), userID, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{UserID: userID, Notifications: records})
}
