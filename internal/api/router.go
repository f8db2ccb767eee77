package api

import (
	"database/sql"
	"net/http"

	"github.com/retrouvtout/backend/internal/alert"
	"github.com/retrouvtout/backend/internal/handover"
	"github.com/retrouvtout/backend/internal/model"
	"github.com/retrouvtout/backend/internal/notify"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, worker *alert.Worker, handoverSvc *handover.Service, dispatcher *notify.Dispatcher, hub *notify.Hub) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	listingsHandler := &ListingsHandler{DB: db, Worker: worker}
	alertsHandler := &AlertsHandler{DB: db}
	threadsHandler := &ThreadsHandler{DB: db, Dispatcher: dispatcher}
	confirmationsHandler := &ConfirmationsHandler{Service: handoverSvc}
	flagsHandler := &FlagsHandler{DB: db}
	wsHandler := &WSHandler{DB: db, JWTSecret: jwtSecret, Hub: hub}

	authMW := AuthMiddleware(jwtSecret, db)
	optionalAuthMW := OptionalAuthMiddleware(jwtSecret, db)
	requireModerator := RequireRole(model.RoleModerator)

	// Public: account creation and login.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated auth routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Profile.
	mux.Handle("GET /api/users/me", authMW(http.HandlerFunc(usersHandler.Me)))
	mux.Handle("PUT /api/users/me", authMW(http.HandlerFunc(usersHandler.UpdateMe)))
	mux.Handle("GET /api/users/me/unread", authMW(http.HandlerFunc(usersHandler.UnreadCount)))

	// Listings. Search, detail and image fetch are public so listings can be
	// browsed without an account; detail still picks up claims when present
	// so finders see their own suspended listings and skip view counting.
	mux.HandleFunc("GET /api/listings", listingsHandler.Search)
	mux.HandleFunc("GET /api/listings/{id}/image", listingsHandler.GetImage)
	mux.Handle("POST /api/listings", authMW(http.HandlerFunc(listingsHandler.Create)))
	mux.Handle("GET /api/listings/mine", authMW(http.HandlerFunc(listingsHandler.Mine)))
	mux.Handle("GET /api/listings/{id}", optionalAuthMW(http.HandlerFunc(listingsHandler.Get)))
	mux.Handle("PUT /api/listings/{id}", authMW(http.HandlerFunc(listingsHandler.Update)))
	mux.Handle("DELETE /api/listings/{id}", authMW(http.HandlerFunc(listingsHandler.Delete)))
	mux.Handle("PUT /api/listings/{id}/image", authMW(http.HandlerFunc(listingsHandler.UploadImage)))
	mux.Handle("PUT /api/listings/{id}/status", authMW(requireModerator(http.HandlerFunc(listingsHandler.SetStatus))))

	// Alerts.
	mux.Handle("GET /api/alerts", authMW(http.HandlerFunc(alertsHandler.List)))
	mux.Handle("POST /api/alerts", authMW(http.HandlerFunc(alertsHandler.Create)))
	mux.Handle("GET /api/alerts/{id}", authMW(http.HandlerFunc(alertsHandler.Get)))
	mux.Handle("PUT /api/alerts/{id}", authMW(http.HandlerFunc(alertsHandler.Update)))
	mux.Handle("POST /api/alerts/{id}/toggle", authMW(http.HandlerFunc(alertsHandler.Toggle)))
	mux.Handle("DELETE /api/alerts/{id}", authMW(http.HandlerFunc(alertsHandler.Delete)))

	// Conversations.
	mux.Handle("POST /api/threads", authMW(http.HandlerFunc(threadsHandler.Create)))
	mux.Handle("GET /api/threads", authMW(http.HandlerFunc(threadsHandler.List)))
	mux.Handle("GET /api/threads/{id}", authMW(http.HandlerFunc(threadsHandler.Get)))
	mux.Handle("POST /api/threads/{id}/approve", authMW(http.HandlerFunc(threadsHandler.Approve)))
	mux.Handle("POST /api/threads/{id}/close", authMW(http.HandlerFunc(threadsHandler.Close)))
	mux.Handle("GET /api/threads/{id}/messages", authMW(http.HandlerFunc(threadsHandler.Messages)))
	mux.Handle("POST /api/threads/{id}/messages", authMW(http.HandlerFunc(threadsHandler.SendMessage)))
	mux.Handle("POST /api/threads/{id}/read", authMW(http.HandlerFunc(threadsHandler.MarkRead)))

	// Handover confirmations.
	mux.Handle("POST /api/confirmations/generate", authMW(http.HandlerFunc(confirmationsHandler.Generate)))
	mux.Handle("POST /api/confirmations/validate", authMW(http.HandlerFunc(confirmationsHandler.Validate)))
	mux.Handle("GET /api/confirmations/thread/{threadId}", authMW(http.HandlerFunc(confirmationsHandler.ForThread)))

	// Moderation reports.
	mux.Handle("POST /api/flags", authMW(http.HandlerFunc(flagsHandler.Create)))
	mux.Handle("GET /api/flags", authMW(requireModerator(http.HandlerFunc(flagsHandler.List))))
	mux.Handle("POST /api/flags/{id}/review", authMW(requireModerator(http.HandlerFunc(flagsHandler.Review))))

	// Push notification stream.
	mux.HandleFunc("GET /api/ws", wsHandler.Connect)

	return mux
}
