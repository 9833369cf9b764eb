package http

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"push-relay/internal/domain"
	"push-relay/internal/usecase"
)

// ConnectionCounter reports live realtime connections.
type ConnectionCounter interface {
	Count() int
}

type Dependencies struct {
	Registry        domain.DeviceRegistry
	Notifications   *usecase.NotificationUsecase
	NotificationLog domain.NotificationLog
	Connections     ConnectionCounter
	Realtime        http.HandlerFunc
	CORSOrigins     []string
	Logger          zerolog.Logger
}

type RootResponse struct {
	Message             string    `json:"message"`
	Timestamp           time.Time `json:"timestamp"`
	Connections         int       `json:"connections"`
	FirebaseInitialized bool      `json:"firebaseInitialized"`
	Users               int       `json:"users"`
	Devices             int       `json:"devices"`
}

// NewRouter wires every endpoint behind the shared middleware chain.
func NewRouter(deps Dependencies) http.Handler {
	devices := NewDeviceHandler(deps.Registry)
	notifications := NewNotificationHandler(deps.Notifications, deps.NotificationLog)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rootHandler(deps))
	mux.HandleFunc("POST /register-device", devices.Register)
	mux.HandleFunc("GET /status/{userId}", devices.Status)
	mux.HandleFunc("DELETE /device/{userId}/{deviceId}", devices.Remove)
	mux.HandleFunc("POST /send-notification", notifications.Send)
	mux.HandleFunc("POST /send-bulk-notification", notifications.SendBulk)
	mux.HandleFunc("GET /notifications/{userId}", notifications.History)
	if deps.Realtime != nil {
		mux.HandleFunc("GET /ws", deps.Realtime)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})

	return chain(mux, deps.Logger, deps.CORSOrigins)
}

func rootHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := deps.Registry.Stats()
		resp := RootResponse{
			Message:             "Push notification relay is running",
			Timestamp:           time.Now().UTC(),
			FirebaseInitialized: deps.Notifications.PushEnabled(),
			Users:               stats.Users,
			Devices:             stats.Devices,
		}
		if deps.Connections != nil {
			resp.Connections = deps.Connections.Count()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
