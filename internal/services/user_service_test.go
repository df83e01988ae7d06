package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/gigbook/internal/auth"
	"github.com/charlesng35/gigbook/internal/database/testutil"
	"github.com/charlesng35/gigbook/internal/models"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
)

func TestUserServiceEnsureProvisionsOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()

	input := EnsureUserInput{
		ID:          "00000000-0000-4000-8000-0000000000a1",
		Kind:        models.UserKindMusician,
		DisplayName: "Alice",
		Email:       " Alice@Example.com ",
	}
	user, err := svc.Ensure(ctx, input)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)

	input.DisplayName = "Renamed"
	again, err := svc.Ensure(ctx, input)
	require.NoError(t, err)
	require.Equal(t, user.ID, again.ID)
	require.Equal(t, "Alice", again.DisplayName, "existing accounts are not overwritten")

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	fetched, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, models.UserKindMusician, fetched.Kind)
}

func TestUserServiceEnsureRejectsKindChange(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()

	id := "00000000-0000-4000-8000-0000000000b2"
	_, err = svc.Ensure(ctx, EnsureUserInput{ID: id, Kind: models.UserKindOrganizer})
	require.NoError(t, err)

	_, err = svc.Ensure(ctx, EnsureUserInput{ID: id, Kind: models.UserKindMusician})
	require.ErrorIs(t, err, ErrAccountKindMismatch)

	_, err = svc.Ensure(ctx, EnsureUserInput{ID: id, Kind: "admin"})
	require.ErrorIs(t, err, apperrors.ErrInvalid)

	_, err = svc.Get(ctx, "00000000-0000-4000-8000-00000000dead")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserServiceEnsureFromClaims(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()

	require.ErrorIs(t, svc.EnsureFromClaims(ctx, nil), apperrors.ErrUnauthorized)

	claims := &iauth.Claims{
		UserID:      "00000000-0000-4000-8000-0000000000c3",
		Kind:        models.UserKindOrganizer,
		DisplayName: "Venue Co",
	}
	require.NoError(t, svc.EnsureFromClaims(ctx, claims))

	user, err := svc.Get(ctx, claims.UserID)
	require.NoError(t, err)
	require.Equal(t, "Venue Co", user.DisplayName)
	require.Equal(t, claims.UserID+"@users.gigbook.local", user.Email)
}
