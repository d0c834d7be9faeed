package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rrepohub/rrepohub-backend/auth"
	"github.com/rrepohub/rrepohub-backend/auth/Oauth"
	"github.com/rrepohub/rrepohub-backend/auth/middleware"
	"github.com/rrepohub/rrepohub-backend/blob"
	"github.com/rrepohub/rrepohub-backend/handlers"
	"github.com/rrepohub/rrepohub-backend/initializers"
	"github.com/rrepohub/rrepohub-backend/jobs"
	"github.com/rrepohub/rrepohub-backend/routes"
	"github.com/rrepohub/rrepohub-backend/services"
	"github.com/rrepohub/rrepohub-backend/store"
)

// openBlobs picks the blob driver. uploadDir is non-empty only for the
// local driver, whose files the API serves itself.
func openBlobs(ctx context.Context, cfg *initializers.Config) (blobs blob.Store, uploadDir string, err error) {
	switch cfg.Blob.Driver {
	case "s3":
		client, err := initializers.NewS3Client(ctx, cfg.Blob.AWSRegion)
		if err != nil {
			return nil, "", err
		}
		return blob.NewS3Store(client, cfg.Blob.AWSBucket), "", nil
	case "supabase":
		return blob.NewSupabaseStore(cfg.Blob.SupabaseURL, cfg.Blob.SupabaseKey, cfg.Blob.SupabaseBucket), "", nil
	default:
		local, err := blob.NewLocalStore(cfg.Blob.LocalDir, cfg.PublicURL)
		if err != nil {
			return nil, "", err
		}
		return local, local.Dir(), nil
	}
}

func serve(ctx context.Context, cfg *initializers.Config, log *zap.Logger, db *gorm.DB) error {
	blobs, uploadDir, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}
	secure := strings.HasPrefix(cfg.PublicURL, "https://")

	files := store.NewFileStore(db)
	profiles := store.NewProfileStore(db)
	orphans := store.NewOrphanStore(db)

	var mailer auth.Mailer = auth.NewLogMailer(log)
	if cfg.SMTP.Host != "" {
		smtp, err := auth.NewSMTPMailer(auth.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Timeout:  cfg.SMTP.Timeout,
		})
		if err != nil {
			return err
		}
		mailer = smtp
	} else {
		log.Warn("SMTP_HOST not set, verification mail is only logged")
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	identity := auth.NewIdentity(profiles, store.NewVerificationStore(db), mailer, auth.IdentityConfig{
		VerifyURL:       strings.TrimRight(cfg.PublicURL, "/") + "/api/auth/verify",
		VerificationTTL: cfg.VerificationTTL,
	}, log)

	cache := services.NewFileCache(files, cfg.CacheSize, cfg.CacheTTL)
	h := handlers.New(handlers.Deps{
		Files:     files,
		Profiles:  profiles,
		Identity:  identity,
		Tokens:    tokens,
		Uploads:   services.NewUploads(files, blobs, orphans, log),
		Downloads: services.NewDownloads(files, cache),
		Cache:     cache,
		Log:       log,
	}, handlers.Options{
		BaseURL:        cfg.BaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		SecureCookies:  secure,
	})

	var oauth *Oauth.Handler
	if cfg.Google.Enabled() {
		Oauth.InitStore(cfg.SessionSecret, secure, Oauth.GoogleCredentials{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		})
		oauth = Oauth.NewHandler(identity, tokens, cfg.BaseURL, secure, log)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx, time.Minute)

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(log),
		middleware.Metrics(),
		cors.New(cors.Config{
			AllowOrigins:     cfg.Origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		sessions.Sessions("rrepohub_session", sessionStore),
		limiter.Middleware(),
	)
	routes.Register(router, routes.Config{
		Handler:   h,
		Tokens:    tokens,
		OAuth:     oauth,
		UploadDir: uploadDir,
	})

	cleanupDone := jobs.StartCleanupJob(ctx, cfg.CleanupInterval, orphans, blobs, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("blob_driver", cfg.Blob.Driver))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-cleanupDone
	return nil
}
