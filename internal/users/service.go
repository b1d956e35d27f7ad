package users

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/calibra-qa/calibra/internal/access"
	"github.com/calibra-qa/calibra/internal/shared"
)

// ErrUnknownRole rejects role assignments outside the platform hierarchy.
var ErrUnknownRole = errors.New("unknown role")

// Store is the persistence surface for user accounts.
type Store interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, user User) (User, error)
	Update(ctx context.Context, user User) (User, error)
	SetRole(ctx context.Context, id int64, role string) (User, error)
	SetPassword(ctx context.Context, id int64, hash string) error
}

// CacheInvalidator drops a user's cached permission decisions. Role and
// activation changes must go through it so stale grants die immediately.
type CacheInvalidator interface {
	ClearUserCache(email string)
}

// CreateInput is the payload for a new account.
type CreateInput struct {
	Email    string
	FullName string
	Role     string
	Password string
}

// Service manages accounts and keeps the permission cache honest.
type Service struct {
	store    Store
	logger   *slog.Logger
	cache    CacheInvalidator
	auditLog *shared.AuditLogger
}

// NewService builds a user service.
func NewService(store Store, logger *slog.Logger, cache CacheInvalidator, auditLog *shared.AuditLogger) *Service {
	return &Service{store: store, logger: logger, cache: cache, auditLog: auditLog}
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.store.Get(ctx, id)
}

// GetByEmail fetches a user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.store.GetByEmail(ctx, email)
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

// Create registers a new account with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, actorEmail string, input CreateInput) (User, error) {
	if access.RoleLevel(input.Role) == 0 {
		return User{}, ErrUnknownRole
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user := User{
		Email:        NormalizeEmail(input.Email),
		FullName:     DisplayName(input.FullName),
		Role:         input.Role,
		IsActive:     true,
		PasswordHash: string(hash),
	}
	created, err := s.store.Create(ctx, user)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actorEmail, "user.create", created.ID, map[string]any{"role": created.Role})
	return created, nil
}

// Update rewrites profile fields. Activation or role changes invalidate the
// user's cached permission decisions.
func (s *Service) Update(ctx context.Context, actorEmail string, user User) (User, error) {
	if access.RoleLevel(user.Role) == 0 {
		return User{}, ErrUnknownRole
	}
	existing, err := s.store.Get(ctx, user.ID)
	if err != nil {
		return User{}, err
	}
	user.Email = existing.Email
	updated, err := s.store.Update(ctx, user)
	if err != nil {
		return User{}, err
	}
	if existing.Role != updated.Role || existing.IsActive != updated.IsActive {
		s.cache.ClearUserCache(updated.Email)
	}
	s.record(ctx, actorEmail, "user.update", updated.ID, nil)
	return updated, nil
}

// ChangeRole moves a user to a new role and clears their cached decisions.
func (s *Service) ChangeRole(ctx context.Context, actorEmail string, id int64, role string) (User, error) {
	if access.RoleLevel(role) == 0 {
		return User{}, ErrUnknownRole
	}
	updated, err := s.store.SetRole(ctx, id, role)
	if err != nil {
		return User{}, err
	}
	s.cache.ClearUserCache(updated.Email)
	s.record(ctx, actorEmail, "user.change_role", id, map[string]any{"role": role})
	return updated, nil
}

// ChangePassword replaces a user's password.
func (s *Service) ChangePassword(ctx context.Context, actorEmail string, id int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.store.SetPassword(ctx, id, string(hash)); err != nil {
		return err
	}
	s.record(ctx, actorEmail, "user.change_password", id, nil)
	return nil
}

// Authenticate verifies credentials for an active account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, shared.ErrInvalidCredentials
		}
		return User{}, err
	}
	if !user.IsActive {
		return User{}, shared.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) record(ctx context.Context, actorEmail, action string, id int64, meta map[string]any) {
	if s.auditLog == nil {
		return
	}
	if err := s.auditLog.Record(ctx, shared.AuditLog{
		ActorEmail: actorEmail,
		Action:     action,
		Entity:     "users",
		EntityID:   strconv.FormatInt(id, 10),
		Meta:       meta,
	}); err != nil {
		s.logger.Warn("audit log", slog.Any("error", err))
	}
}
