package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pineappleswan/treasury/internal/logger"
	"github.com/pineappleswan/treasury/pkg/api/handlers"
	apimiddleware "github.com/pineappleswan/treasury/pkg/api/middleware"
	"github.com/pineappleswan/treasury/pkg/auth"
	"github.com/pineappleswan/treasury/pkg/catalog"
	"github.com/pineappleswan/treasury/pkg/download"
	"github.com/pineappleswan/treasury/pkg/upload"
)

// RouterDeps wires the gateway's route handlers to the underlying
// services.
type RouterDeps struct {
	Catalog       *catalog.Store
	AuthService   *auth.Service
	RateLimiter   *auth.ClientRateLimiter
	Coordinator   *upload.Coordinator
	Streamer      *download.Streamer
	SecureCookies bool

	MaxJSONBodyBytes int64
	MaxRawBodyBytes  int64
}

// NewRouter builds the gateway's chi router: the middleware stack, the
// body-size limiter, and the full route table.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(deps.Catalog)
	r.Get("/health", healthHandler.Liveness)

	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.RateLimiter, deps.SecureCookies)
	fsHandler := handlers.NewFilesystemHandler(deps.Catalog)
	transferHandler := handlers.NewTransferHandler(deps.Coordinator, deps.Streamer, deps.MaxRawBodyBytes)

	r.Route("/api", func(r chi.Router) {
		r.Use(limitJSONBody(deps.MaxJSONBodyBytes))

		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/claimaccount", authHandler.ClaimAccount)
		r.Get("/isloggedin", authHandler.IsLoggedIn)

		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.RequireSession(deps.AuthService))

			r.Get("/getusername", authHandler.GetUsername)
			r.Get("/getstoragequota", fsHandler.GetStorageQuota)
			r.Get("/getstorageused", fsHandler.GetStorageUsed)

			r.Post("/getfilesystem", fsHandler.GetFilesystem)
			r.Post("/filesystem/createFolder", fsHandler.CreateFolder)
			r.Post("/filesystem/editmetadata", fsHandler.EditMetadata)

			r.Post("/transfer/startupload", transferHandler.StartUpload)
			r.Post("/transfer/finaliseupload", transferHandler.FinaliseUpload)
			r.Post("/transfer/cancelupload", transferHandler.CancelUpload)
			r.Post("/transfer/downloadchunk", transferHandler.DownloadChunk)

			// uploadchunk carries a raw multipart body up to the larger
			// binary limit, not the JSON limit the route group enforces.
			r.With(rawBodyLimit(deps.MaxRawBodyBytes)).Post("/transfer/uploadchunk", transferHandler.UploadChunk)
		})
	})

	return r
}

// limitJSONBody bounds JSON request bodies to maxBytes via MaxBytesReader.
// uploadchunk overrides this per-route with rawBodyLimit instead.
func limitJSONBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// rawBodyLimit re-wraps the body with the larger binary-upload limit,
// undoing the group's JSON limit for this one route.
func rawBodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs request start (DEBUG) and completion (INFO) using the
// internal logger, mirroring the teacher's chi request-logging middleware.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("gateway request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("gateway request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
