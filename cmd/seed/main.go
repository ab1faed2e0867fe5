// seed creates a development user and prints a signed identity assertion for POST /api/auth/login.
// Idempotent: an existing user with the same subject is reused. Without DATABASE_URL only the
// assertion is printed; the in-memory server creates the user on first login.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"interview-analyzer/internal/config"
	"interview-analyzer/internal/db"
	identitydomain "interview-analyzer/internal/identity/domain"
	"interview-analyzer/internal/identity/verifier"
	"interview-analyzer/internal/logutil"
	userdomain "interview-analyzer/internal/user/domain"
	userrepo "interview-analyzer/internal/user/repository"
)

func main() {
	subject := flag.String("subject", "dev-user", "Identity provider subject")
	email := flag.String("email", "dev@example.com", "Email address")
	name := flag.String("name", "Dev User", "Display name")
	ttl := flag.Duration("ttl", 10*time.Minute, "Assertion lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logutil.New(os.Stderr, "info").Error(err, "config")
		os.Exit(1)
	}
	logger := logutil.New(os.Stderr, cfg.LogLevel).WithName("seed")
	if cfg.Env == "production" {
		logger.Info("seed refuses to run with APP_ENV=production")
		os.Exit(1)
	}
	if cfg.UsesIdentityPublicKey() {
		logger.Info("IDENTITY_PUBLIC_KEY is set; development assertions need IDENTITY_SECRET")
		os.Exit(1)
	}

	profile := identitydomain.Profile{
		Provider:      identitydomain.IdentityProviderDev,
		Subject:       *subject,
		Email:         *email,
		EmailVerified: true,
		Name:          *name,
	}

	if cfg.DatabaseURL != "" {
		ctx := context.Background()
		database, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Error(err, "failed to open database")
			os.Exit(1)
		}
		defer database.Close()
		users := userrepo.NewPostgresRepository(database)

		existing, err := users.GetByExternalID(ctx, profile.ExternalID())
		if err != nil {
			logger.Error(err, "failed to look up user")
			os.Exit(1)
		}
		if existing != nil {
			logger.Info("dev user already exists, skipping insert", "userID", existing.ID)
		} else {
			now := time.Now().UTC()
			u := &userdomain.User{
				ID:         uuid.New().String(),
				ExternalID: profile.ExternalID(),
				Email:      profile.Email,
				Name:       profile.Name,
				Status:     userdomain.UserStatusActive,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := users.Create(ctx, u); err != nil {
				logger.Error(err, "failed to create dev user")
				os.Exit(1)
			}
			logger.Info("created dev user", "userID", u.ID, "email", u.Email)
		}
	}

	assertion, err := verifier.SignAssertion([]byte(cfg.IdentitySecret), cfg.IdentityIssuer, cfg.IdentityAudience, profile, *ttl)
	if err != nil {
		logger.Error(err, "failed to sign assertion")
		os.Exit(1)
	}
	fmt.Println(assertion)
}
