package handlers

import (
	"net/http"

	"github.com/vidhost/backend/internal/middleware"
)

// APIPrefix is the mount point of the account routes.
const APIPrefix = "/api/v1/users"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	users := UserHandler{
		Accounts:       deps.Accounts,
		Cookies:        deps.Cookies,
		MaxUploadBytes: deps.MaxUploadBytes,
	}
	channels := ChannelHandler{Channels: deps.Channels}

	secured := middleware.RequireAuth(deps.Authenticator, respondError)
	guard := func(h http.HandlerFunc) http.Handler { return secured(h) }
	throttle := func(scope string, h http.HandlerFunc) http.Handler {
		return middleware.Throttle(deps.AuthLimiter, deps.Proxies, scope, respondTooManyRequests)(h)
	}

	mux.HandleFunc("GET /healthz", health.Handle)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.Handle("POST "+APIPrefix+"/register", throttle("register", users.Register))
	mux.Handle("POST "+APIPrefix+"/login", throttle("login", users.Login))
	mux.Handle("POST "+APIPrefix+"/refresh-token", throttle("refresh", users.RefreshToken))

	mux.Handle("POST "+APIPrefix+"/logout", guard(users.Logout))
	mux.Handle("POST "+APIPrefix+"/password", guard(users.ChangePassword))
	mux.Handle("PATCH "+APIPrefix+"/updateDetails", guard(users.UpdateDetails))
	mux.Handle("GET "+APIPrefix+"/current-user", guard(users.CurrentUser))
	mux.Handle("PATCH "+APIPrefix+"/avatar", guard(users.UpdateAvatar))
	mux.Handle("PATCH "+APIPrefix+"/coverImage", guard(users.UpdateCoverImage))

	mux.Handle("GET "+APIPrefix+"/channel/{userName}", guard(channels.Profile))
	mux.Handle("POST "+APIPrefix+"/channel/{userName}/subscribe", guard(channels.Subscribe))
	mux.Handle("DELETE "+APIPrefix+"/channel/{userName}/subscribe", guard(channels.Unsubscribe))
	mux.Handle("GET "+APIPrefix+"/history", guard(channels.WatchHistory))
	mux.Handle("POST "+APIPrefix+"/history/{videoId}", guard(channels.RecordView))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts       AccountService
	Channels       ChannelService
	Authenticator  middleware.Authenticator
	AuthLimiter    middleware.RateLimiter
	Proxies        middleware.Proxies
	Database       Pinger
	Metrics        http.Handler
	Cookies        CookieConfig
	MaxUploadBytes int64
}
