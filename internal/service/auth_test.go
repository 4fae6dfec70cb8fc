package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pageza/recipe-lens/backend/internal/models"
	"github.com/pageza/recipe-lens/backend/internal/service"
	"github.com/pageza/recipe-lens/backend/internal/testhelpers"
	"github.com/pageza/recipe-lens/backend/internal/types"
)

const testSecret = "test-secret"

func setupAuthTest(t *testing.T, opts ...service.AuthOption) (*gorm.DB, *service.AuthService) {
	t.Helper()
	db := testhelpers.SetupSQLite(t)
	opts = append([]service.AuthOption{service.WithBcryptCost(bcrypt.MinCost)}, opts...)
	return db, service.NewAuthService(db, testSecret, time.Hour, opts...)
}

func TestRegister(t *testing.T) {
	_, authSvc := setupAuthTest(t)

	user, err := authSvc.Register(context.Background(), "  Cook@Example.COM ", "password123", "")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "cook@example.com", user.Email)
	assert.Equal(t, "cook", user.Name)
	assert.Equal(t, models.DefaultSpiceLevel, user.SpiceLevel)
	assert.NotEqual(t, "password123", user.PasswordHash)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	_, authSvc := setupAuthTest(t)
	ctx := context.Background()

	_, err := authSvc.Register(ctx, "dup@example.com", "password123", "First")
	require.NoError(t, err)

	_, err = authSvc.Register(ctx, "DUP@example.com", "password456", "Second")
	assert.ErrorIs(t, err, service.ErrDuplicateIdentity)
}

func TestRegisterValidation(t *testing.T) {
	_, authSvc := setupAuthTest(t)

	tests := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{name: "missing email", email: "", password: "password123", field: "email"},
		{name: "malformed email", email: "not-an-email", password: "password123", field: "email"},
		{name: "short password", email: "a@example.com", password: "12345", field: "password"},
		{name: "long password", email: "a@example.com", password: strings.Repeat("x", 73), field: "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authSvc.Register(context.Background(), tt.email, tt.password, "")
			require.ErrorIs(t, err, service.ErrValidation)

			var verr *service.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLogin(t *testing.T) {
	_, authSvc := setupAuthTest(t)
	ctx := context.Background()

	registered, err := authSvc.Register(ctx, "login@example.com", "password123", "")
	require.NoError(t, err)

	user, err := authSvc.Login(ctx, "Login@Example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	db, authSvc := setupAuthTest(t)
	ctx := context.Background()

	_, err := authSvc.Register(ctx, "known@example.com", "password123", "")
	require.NoError(t, err)
	disabled, err := authSvc.Register(ctx, "disabled@example.com", "password123", "")
	require.NoError(t, err)
	require.NoError(t, db.Model(disabled).Update("disabled", true).Error)

	tests := []struct {
		name, email, password string
	}{
		{"unknown email", "nobody@example.com", "password123"},
		{"wrong password", "known@example.com", "wrongpassword"},
		{"disabled account", "disabled@example.com", "password123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authSvc.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, service.ErrInvalidCredentials)
			assert.Equal(t, "invalid credentials", err.Error())
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	_, authSvc := setupAuthTest(t)

	user, err := authSvc.Register(context.Background(), "token@example.com", "password123", "")
	require.NoError(t, err)

	token, err := authSvc.GenerateToken(user)
	require.NoError(t, err)

	claims, err := authSvc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "token@example.com", claims.Email)
	assert.WithinDuration(t, claims.IssuedAt.Add(time.Hour), claims.ExpiresAt.Time, time.Second)
}

func TestValidateTokenExpired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	_, authSvc := setupAuthTest(t, service.WithAuthClock(clock))

	user, err := authSvc.Register(context.Background(), "exp@example.com", "password123", "")
	require.NoError(t, err)
	token, err := authSvc.GenerateToken(user)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = authSvc.ValidateToken(token)
	assert.ErrorIs(t, err, service.ErrTokenExpired)
}

func TestValidateTokenMalformed(t *testing.T) {
	db, authSvc := setupAuthTest(t)
	user := testhelpers.CreateUser(t, db, "mal@example.com")

	otherSvc := service.NewAuthService(db, "another-secret", time.Hour)
	foreign, err := otherSvc.GenerateToken(user)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &types.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: user.ID,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &types.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID.String()},
		UserID:           user.ID,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":        "not.a.token",
		"empty":          "",
		"wrong secret":   foreign,
		"alg none":       noneToken,
		"missing expiry": noExpiry,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := authSvc.ValidateToken(token)
			assert.ErrorIs(t, err, service.ErrTokenMalformed)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	db, authSvc := setupAuthTest(t)
	ctx := context.Background()

	user := testhelpers.CreateUser(t, db, "auth@example.com")
	token, err := authSvc.GenerateToken(user)
	require.NoError(t, err)

	got, err := authSvc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	require.NoError(t, db.Model(user).Update("disabled", true).Error)
	_, err = authSvc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, service.ErrUnauthenticated)

	ghost := &models.User{ID: uuid.New(), Email: "ghost@example.com"}
	ghostToken, err := authSvc.GenerateToken(ghost)
	require.NoError(t, err)
	_, err = authSvc.Authenticate(ctx, ghostToken)
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestUpdatePreferences(t *testing.T) {
	db, authSvc := setupAuthTest(t)
	ctx := context.Background()
	user := testhelpers.CreateUser(t, db, "prefs@example.com")

	name := "Chef"
	diet := "Vegan"
	spice := 4
	updated, err := authSvc.UpdatePreferences(ctx, user.ID, &types.UpdatePreferencesRequest{
		Name:        &name,
		DietaryType: &diet,
		Allergies:   []string{" Peanuts", "peanuts", "", "Shellfish"},
		SpiceLevel:  &spice,
	})
	require.NoError(t, err)

	assert.Equal(t, "Chef", updated.Name)
	assert.Equal(t, "vegan", updated.DietaryType)
	assert.Equal(t, models.JSONBStringArray{"peanuts", "shellfish"}, updated.Allergies)
	assert.Equal(t, 4, updated.SpiceLevel)

	bad := "carnivore"
	_, err = authSvc.UpdatePreferences(ctx, user.ID, &types.UpdatePreferencesRequest{DietaryType: &bad})
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = authSvc.UpdatePreferences(ctx, uuid.New(), &types.UpdatePreferencesRequest{Name: &name})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	db, authSvc := setupAuthTest(t)
	ctx := context.Background()
	user := testhelpers.CreateUser(t, db, "pw@example.com")

	err := authSvc.ChangePassword(ctx, user.ID, "wrong-password", "newpassword")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	err = authSvc.ChangePassword(ctx, user.ID, testhelpers.TestPassword, "123")
	assert.ErrorIs(t, err, service.ErrValidation)

	require.NoError(t, authSvc.ChangePassword(ctx, user.ID, testhelpers.TestPassword, "newpassword"))

	_, err = authSvc.Login(ctx, "pw@example.com", testhelpers.TestPassword)
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = authSvc.Login(ctx, "pw@example.com", "newpassword")
	assert.NoError(t, err)
}
