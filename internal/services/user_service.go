package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	iauth "github.com/charlesng35/gigbook/internal/auth"
	"github.com/charlesng35/gigbook/internal/models"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
)

// ErrAccountKindMismatch is returned when a token's kind disagrees with the stored account.
var ErrAccountKindMismatch = apperrors.Forbidden("account kind does not match the registered user")

// EnsureUserInput describes the actor carried by an access token.
type EnsureUserInput struct {
	ID          string
	Kind        string
	DisplayName string
	Email       string
}

// UserService provisions booking accounts from verified tokens.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Ensure returns the stored user for input.ID, creating it on first sight.
// A user keeps the kind it was created with.
func (s *UserService) Ensure(ctx context.Context, input EnsureUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, apperrors.Invalid("user id is required")
	}
	if input.Kind != models.UserKindOrganizer && input.Kind != models.UserKindMusician {
		return nil, apperrors.Invalid("unsupported account kind")
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		email = id + "@users.gigbook.local"
	}

	user := models.User{
		BaseModel:   models.BaseModel{ID: id},
		DisplayName: defaultIfEmpty(strings.TrimSpace(input.DisplayName), "Unnamed"),
		Email:       email,
		Kind:        input.Kind,
	}

	var stored models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).Attrs(user).FirstOrCreate(&stored).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.Conflict("email already registered to another account")
		}
		return nil, fmt.Errorf("user service: ensure user: %w", err)
	}
	if stored.Kind != input.Kind {
		return nil, ErrAccountKindMismatch
	}
	return &stored, nil
}

// EnsureFromClaims provisions the account named by verified token claims.
func (s *UserService) EnsureFromClaims(ctx context.Context, claims *iauth.Claims) error {
	if claims == nil {
		return apperrors.ErrUnauthorized
	}
	_, err := s.Ensure(ctx, EnsureUserInput{
		ID:          claims.UserID,
		Kind:        claims.Kind,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
	})
	return err
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ensureContext(ctx)).First(&user, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("user")
		}
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// requireKind loads the actor and checks its account kind.
func requireKind(db *gorm.DB, userID, kind string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.Forbidden("unknown actor")
		}
		return nil, fmt.Errorf("load actor: %w", err)
	}
	if user.Kind != kind {
		return nil, apperrors.Forbidden(fmt.Sprintf("only %ss may perform this action", kind))
	}
	return &user, nil
}
