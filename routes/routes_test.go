package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-backend/config"
	"marketplace-backend/database"
	"marketplace-backend/dtos"
	"marketplace-backend/middleware"
	"marketplace-backend/models"
	"marketplace-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testSecret     = "test-secret-for-routes"
	testServiceKey = "internal-service-key"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopNotifier struct{}

func (nopNotifier) SendOrderConfirmation(dtos.OrderConfirmation) {}
func (nopNotifier) SendOrderStatusUpdate(string, string, string, models.OrderStatus) {}

func setupRouter(t *testing.T, limit int) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := database.Connect(config.DBConfig{Driver: "sqlite", DatabaseURL: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	hash, err := bcrypt.GenerateFromPassword([]byte(testServiceKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		Auth: config.AuthConfig{JWTSecret: testSecret, ServiceKeyHash: string(hash)},
		Shop: config.ShopConfig{ShippingFee: decimal.NewFromInt(5), FreeShippingMin: decimal.NewFromInt(50)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	SetupRoutes(r, Deps{
		DB:       db,
		Config:   cfg,
		Notifier: nopNotifier{},
		Limiter:  middleware.NewRateLimiter(ctx, limit, time.Minute),
		Log:      zerolog.Nop(),
	})
	return r, db
}

func tokenFor(t *testing.T, role string) string {
	t.Helper()
	claims := utils.Claims{
		Email: "user@test.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	claims.AppMetadata.Role = role
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func do(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	r, _ := setupRouter(t, 100)
	w := do(r, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestPublicCategoryRoutes(t *testing.T) {
	r, db := setupRouter(t, 100)
	require.NoError(t, database.SeedDefaultCategories(db))

	for _, path := range []string{
		"/api/categories",
		"/api/categories/top",
		"/api/categories/with-counts",
		"/api/categories/phones",
		"/api/categories/smartphones/breadcrumb",
	} {
		w := do(r, "GET", path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestPublicProductsRoute(t *testing.T) {
	r, _ := setupRouter(t, 100)
	w := do(r, "GET", "/api/products", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	r, _ := setupRouter(t, 100)
	for _, path := range []string{"/api/cart", "/api/wishlist", "/api/orders"} {
		w := do(r, "GET", path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := do(r, "GET", "/api/cart", tokenFor(t, utils.RoleCustomer))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRouteBlocksNonAdmin(t *testing.T) {
	r, _ := setupRouter(t, 100)
	w := do(r, "GET", "/api/admin/orders", tokenFor(t, utils.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, "GET", "/api/admin/orders", tokenFor(t, utils.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVendorRouteBlocksNonVendor(t *testing.T) {
	r, _ := setupRouter(t, 100)
	w := do(r, "GET", "/api/vendor/products", tokenFor(t, utils.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestInternalRouteRequiresServiceKey(t *testing.T) {
	r, _ := setupRouter(t, 100)
	path := "/api/internal/orders/" + uuid.NewString() + "/confirmation-email"

	w := do(r, "POST", path, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("POST", path, nil)
	req.Header.Set(middleware.ServiceKeyHeader, testServiceKey)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "valid key reaches the handler")
}

func TestPublicRoutesAreRateLimited(t *testing.T) {
	r, _ := setupRouter(t, 2)
	assert.Equal(t, http.StatusOK, do(r, "GET", "/api/categories", "").Code)
	assert.Equal(t, http.StatusOK, do(r, "GET", "/api/categories", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "GET", "/api/categories", "").Code)

	// health is outside the limited group
	assert.Equal(t, http.StatusOK, do(r, "GET", "/health", "").Code)
}
