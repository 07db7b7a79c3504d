package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// defaultAdminUsername is used when seeding an empty database with no
// bootstrap account configured.
const defaultAdminUsername = "admin"

// SeedAdmin ensures an admin account exists at startup.
//
// With a configured bootstrap username the account is upserted: created
// if missing, otherwise its password is reset and the account is made
// an enabled admin. Either way the account must change its password at
// next login.
//
// Without bootstrap configuration, an empty database gets a default
// admin with a generated password that is logged once — it must be
// changed immediately. Returns the generated password, or empty if
// nothing was generated.
func SeedAdmin(ctx context.Context, userRepo UserRepository, username, password string, logger *slog.Logger) (string, error) {
	if username != "" {
		return "", upsertBootstrapAdmin(ctx, userRepo, username, password, logger)
	}

	count, err := userRepo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		return "", nil
	}

	generated, err := GeneratePassword()
	if err != nil {
		return "", err
	}

	hash, err := HashPassword(generated)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Username:            defaultAdminUsername,
		PasswordHash:        hash,
		Role:                RoleAdmin,
		ForcePasswordChange: true,
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"username", defaultAdminUsername,
		"password", generated,
		"action_required", "change this password immediately",
	)

	return generated, nil
}

// upsertBootstrapAdmin creates or resets the configured bootstrap account.
func upsertBootstrapAdmin(ctx context.Context, userRepo UserRepository, username, password string, logger *slog.Logger) error {
	if password == "" {
		return fmt.Errorf("bootstrap admin %q configured without a password", username)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing bootstrap password: %w", err)
	}

	existing, err := userRepo.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, ErrUserNotFound):
		admin := &User{
			Username:            username,
			PasswordHash:        hash,
			Role:                RoleAdmin,
			ForcePasswordChange: true,
		}
		if err := userRepo.Create(ctx, admin); err != nil {
			return fmt.Errorf("creating bootstrap admin: %w", err)
		}
		logger.Info("bootstrap admin account created", "username", admin.Username)
		return nil
	case err != nil:
		return fmt.Errorf("looking up bootstrap admin: %w", err)
	default:
		if err := userRepo.AdminResetPassword(ctx, existing.ID, hash); err != nil {
			return fmt.Errorf("resetting bootstrap admin password: %w", err)
		}
		// The bootstrap account must come up privileged and usable,
		// whatever state the existing row is in.
		if existing.Role != RoleAdmin {
			if err := userRepo.UpdateRole(ctx, existing.ID, RoleAdmin); err != nil {
				return fmt.Errorf("promoting bootstrap admin: %w", err)
			}
		}
		if existing.IsDisabled {
			if err := userRepo.SetDisabled(ctx, existing.ID, false); err != nil {
				return fmt.Errorf("enabling bootstrap admin: %w", err)
			}
		}
		logger.Info("bootstrap admin password reset", "username", existing.Username)
		return nil
	}
}
