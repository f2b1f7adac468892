package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/matchmate/matchmate-go/internal/config"
	"github.com/matchmate/matchmate-go/internal/crypto"
	"github.com/matchmate/matchmate-go/internal/handler"
	"github.com/matchmate/matchmate-go/internal/middleware"
	"github.com/matchmate/matchmate-go/internal/repository"
	"github.com/matchmate/matchmate-go/internal/service"
)

const tokenPurgeInterval = time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg := config.Load()
	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://localhost:" + cfg.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(ctx, cfg.DatabaseDSN, repository.DefaultPoolConfig())
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	photoRepo := repository.NewPhotoRepository(db)
	swipeRepo := repository.NewSwipeRepository(db)
	shortlistRepo := repository.NewShortlistRepository(db)

	issuer := crypto.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenExpiry)
	hasher := crypto.NewPasswordHasher(crypto.DefaultHashParams())

	authService := service.NewAuthService(userRepo, tokenRepo, hasher, issuer, cfg.RefreshTokenExpiry)
	profileService := service.NewProfileService(profileRepo, photoRepo, service.ProfileOptions{
		UploadDir:     cfg.UploadDir,
		PublicURL:     cfg.PublicURL,
		MaxPhotos:     cfg.MaxPhotos,
		MaxPhotoBytes: cfg.MaxPhotoBytes,
	})
	discoveryService := service.NewDiscoveryService(profileRepo, swipeRepo, shortlistRepo, cfg.PublicURL)

	authHandler := handler.NewAuthHandler(authService)
	profileHandler := handler.NewProfileHandler(profileService, int64(cfg.MaxPhotos)*cfg.MaxPhotoBytes+1<<20)
	discoveryHandler := handler.NewDiscoveryHandler(discoveryService)

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(ctx, cfg.AuthRateLimit, cfg.AuthRateBurst))
			r.Post("/auth/register", authHandler.HandleRegister)
			r.Post("/auth/login", authHandler.HandleLogin)
			r.Post("/auth/refresh", authHandler.HandleRefresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(issuer))
			r.Post("/auth/logout", authHandler.HandleLogout)
			r.Get("/auth/me", authHandler.HandleMe)

			r.Get("/profile", profileHandler.HandleGetProfile)
			r.Put("/profile", profileHandler.HandleUpdateProfile)
			r.Post("/profile/photos", profileHandler.HandleUploadPhotos)
			r.Delete("/profile/photos/{photo_id}", profileHandler.HandleDeletePhoto)
			r.Get("/profiles/{user_id}", profileHandler.HandleViewProfile)
			r.Get("/profiles/{user_id}/common-interests", discoveryHandler.HandleCommonInterests)

			r.Get("/discover", discoveryHandler.HandleDiscover)
			r.Post("/swipes", discoveryHandler.HandleSwipe)
			r.Get("/matches", discoveryHandler.HandleMatches)

			r.Get("/shortlist", discoveryHandler.HandleListShortlist)
			r.Post("/shortlist", discoveryHandler.HandleAddToShortlist)
			r.Delete("/shortlist/{user_id}", discoveryHandler.HandleRemoveFromShortlist)
		})
	})

	go purgeExpiredTokens(ctx, authService)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

func purgeExpiredTokens(ctx context.Context, auth *service.AuthService) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.PurgeExpiredTokens(ctx)
			if err != nil {
				slog.Warn("purging expired refresh tokens failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged expired refresh tokens", "count", n)
			}
		}
	}
}
