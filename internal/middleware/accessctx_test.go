package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/access"
	iauth "github.com/voltgrid/voltgrid/internal/auth"
	"github.com/voltgrid/voltgrid/internal/database"
	"github.com/voltgrid/voltgrid/internal/models"
)

func setupMiddlewareTest(t *testing.T) (*gorm.DB, *access.Engine, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, database.SeedData(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	engine, err := access.NewEngine(db, access.EngineConfig{})
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	return db, engine, jwtSvc
}

func protectedRouter(engine *access.Engine, jwtSvc *iauth.JWTService, permission string) *gin.Engine {
	r := gin.New()
	r.GET("/protected",
		Auth(jwtSvc),
		AccessContext(engine),
		RequirePermission(permission),
		func(c *gin.Context) {
			actor, _ := GetAccessContext(c)
			c.JSON(http.StatusOK, gin.H{"user_id": actor.UserID()})
		})
	return r
}

func issueToken(t *testing.T, jwtSvc *iauth.JWTService, userID string) string {
	t.Helper()
	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{UserID: userID})
	require.NoError(t, err)
	return token
}

func seedUserWithRole(t *testing.T, db *gorm.DB, username, roleID string) *models.User {
	t.Helper()

	user := &models.User{Username: username, Email: username + "@example.com", Password: "hashed", IsActive: true}
	require.NoError(t, db.Create(user).Error)
	if roleID != "" {
		require.NoError(t, db.Create(&models.RoleAssignment{
			UserID:     user.ID,
			RoleID:     roleID,
			AssignedAt: time.Now(),
			IsActive:   true,
		}).Error)
	}
	return user
}

func TestRequirePermissionAllowsHolder(t *testing.T) {
	db, engine, jwtSvc := setupMiddlewareTest(t)
	user := seedUserWithRole(t, db, "viewer-user", "viewer")

	router := protectedRouter(engine, jwtSvc, "device.view")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, jwtSvc, user.ID))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), user.ID)
}

func TestRequirePermissionDeniesNonHolder(t *testing.T) {
	db, engine, jwtSvc := setupMiddlewareTest(t)
	user := seedUserWithRole(t, db, "viewer-user", "viewer")

	router := protectedRouter(engine, jwtSvc, "device.delete")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, jwtSvc, user.ID))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), "FORBIDDEN")
}

func TestRequirePermissionSystemAdminShortCircuits(t *testing.T) {
	db, engine, jwtSvc := setupMiddlewareTest(t)
	admin := seedUserWithRole(t, db, "root", "platform-admin")

	// platform-admin only holds system.admin, not the specific code.
	router := protectedRouter(engine, jwtSvc, "device.delete")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, jwtSvc, admin.ID))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsMissingAndMalformedTokens(t *testing.T) {
	_, engine, jwtSvc := setupMiddlewareTest(t)
	router := protectedRouter(engine, jwtSvc, "device.view")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccessContextRejectsDeactivatedUser(t *testing.T) {
	db, engine, jwtSvc := setupMiddlewareTest(t)
	user := seedUserWithRole(t, db, "ghost", "viewer")
	require.NoError(t, db.Model(user).Update("is_active", false).Error)

	router := protectedRouter(engine, jwtSvc, "device.view")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, jwtSvc, user.ID))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
