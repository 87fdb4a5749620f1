package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"marketplace-backend/config"
	"marketplace-backend/database"
	"marketplace-backend/dtos"
	"marketplace-backend/middleware"
	"marketplace-backend/models"
	"marketplace-backend/services"
	"marketplace-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-for-unit-tests"

var testDB *gorm.DB

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	var err error
	testDB, err = database.Connect(config.DBConfig{Driver: "sqlite", DatabaseURL: "file::memory:?cache=shared"}, zerolog.Nop())
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	if err := database.Migrate(testDB); err != nil {
		panic("failed to migrate test database: " + err.Error())
	}

	os.Exit(m.Run())
}

// freshDB returns a clean database for each test by deleting all rows.
func freshDB() *gorm.DB {
	testDB.Exec("DELETE FROM order_items")
	testDB.Exec("DELETE FROM orders")
	testDB.Exec("DELETE FROM cart_items")
	testDB.Exec("DELETE FROM wishlist_items")
	testDB.Exec("DELETE FROM products")
	testDB.Exec("DELETE FROM categories")
	testDB.Exec("DELETE FROM vendors")
	return testDB
}

var testShop = config.ShopConfig{
	ShippingFee:     decimal.RequireFromString("4.99"),
	FreeShippingMin: decimal.RequireFromString("50"),
	StorefrontURL:   "https://shop.test",
}

// ==================== Auth Helpers ====================

type testUser struct {
	ID    uuid.UUID
	Email string
	Token string
}

func signTestToken(userID uuid.UUID, email, role string, vendorID *uuid.UUID) string {
	claims := utils.Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	claims.AppMetadata.Role = role
	if vendorID != nil {
		claims.AppMetadata.VendorID = vendorID.String()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		panic("failed to sign test token: " + err.Error())
	}
	return token
}

func newCustomer(email string) testUser {
	id := uuid.New()
	return testUser{ID: id, Email: email, Token: signTestToken(id, email, utils.RoleCustomer, nil)}
}

func newAdmin() testUser {
	id := uuid.New()
	return testUser{ID: id, Email: "admin@test.com", Token: signTestToken(id, "admin@test.com", utils.RoleAdmin, nil)}
}

// newVendorUser seeds an active vendor and returns its owner's token.
func newVendorUser(db *gorm.DB, name string) (models.Vendor, testUser) {
	vendor := seedVendor(db, name)
	token := signTestToken(vendor.OwnerID, vendor.Email, utils.RoleVendor, &vendor.ID)
	return vendor, testUser{ID: vendor.OwnerID, Email: vendor.Email, Token: token}
}

// ==================== Seed Helpers ====================

func seedVendor(db *gorm.DB, name string) models.Vendor {
	vendor := models.Vendor{
		ID:       uuid.New(),
		Name:     name,
		Slug:     utils.Slugify(name),
		OwnerID:  uuid.New(),
		Email:    utils.Slugify(name) + "@vendors.test",
		IsActive: true,
	}
	db.Create(&vendor)
	return vendor
}

func seedCategory(db *gorm.DB, name string, parent *models.Category) models.Category {
	cat := models.Category{
		ID:    uuid.New(),
		Name:  name,
		Slug:  utils.Slugify(name),
		Level: 1,
	}
	if parent != nil {
		cat.ParentID = &parent.ID
		cat.Level = parent.Level + 1
	}
	db.Create(&cat)
	return cat
}

func seedProduct(db *gorm.DB, name string, vendor models.Vendor, categoryID uuid.UUID, price string, stock int) models.Product {
	product := models.Product{
		ID:            uuid.New(),
		VendorID:      vendor.ID,
		CategoryID:    categoryID,
		Name:          name,
		Slug:          utils.Slugify(name),
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
		Attributes:    models.Attributes{},
	}
	db.Create(&product)
	return product
}

func seedInactiveProduct(db *gorm.DB, name string, vendor models.Vendor, categoryID uuid.UUID) models.Product {
	product := seedProduct(db, name, vendor, categoryID, "10.00", 10)
	db.Model(&models.Product{}).Where("id = ?", product.ID).Update("is_active", false)
	product.IsActive = false
	return product
}

func seedCartItem(db *gorm.DB, userID, productID uuid.UUID, qty int) models.CartItem {
	item := models.CartItem{ID: uuid.New(), UserID: userID, ProductID: productID, Quantity: qty}
	db.Create(&item)
	return item
}

// afterQuery runs fn after every completed query against table, so a test can
// change rows between a handler's read and its write.
func afterQuery(t *testing.T, db *gorm.DB, table string, fn func(tx *gorm.DB)) {
	t.Helper()
	name := "test:after_query:" + t.Name() + ":" + table
	err := db.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table && tx.Error == nil {
			fn(tx)
		}
	})
	if err != nil {
		t.Fatalf("failed to register query callback: %v", err)
	}
	t.Cleanup(func() {
		db.Callback().Query().Remove(name)
	})
}

// ==================== Fakes ====================

type statusEmail struct {
	Email       string
	OrderNumber string
	Status      models.OrderStatus
}

// recordingNotifier captures order emails instead of sending them.
type recordingNotifier struct {
	mu            sync.Mutex
	confirmations []dtos.OrderConfirmation
	statusUpdates []statusEmail
}

func (n *recordingNotifier) SendOrderConfirmation(conf dtos.OrderConfirmation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, conf)
}

func (n *recordingNotifier) SendOrderStatusUpdate(email, name, orderNumber string, status models.OrderStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statusUpdates = append(n.statusUpdates, statusEmail{Email: email, OrderNumber: orderNumber, Status: status})
}

// ==================== Router Setup ====================

func setupCategoryRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	h := &CategoryHandler{Service: services.NewCategoryService(db, zerolog.Nop())}

	api := r.Group("/api")
	api.GET("/categories", h.GetCategories)
	api.GET("/categories/top", h.GetTopCategories)
	api.GET("/categories/with-counts", h.GetCategoriesWithCounts)
	api.GET("/categories/:slug", h.GetCategory)
	api.GET("/categories/:slug/breadcrumb", h.GetBreadcrumb)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(testSecret), middleware.AdminMiddleware())
	admin.POST("/categories", h.CreateCategory)
	admin.PUT("/categories/:id", h.UpdateCategory)
	admin.DELETE("/categories/:id", h.DeleteCategory)

	return r
}

func setupProductRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	h := &ProductHandler{DB: db, Categories: services.NewCategoryService(db, zerolog.Nop()), Log: zerolog.Nop()}

	api := r.Group("/api")
	api.GET("/products", h.GetProducts)
	api.GET("/products/:slug", h.GetProduct)

	vendor := api.Group("/vendor")
	vendor.Use(middleware.AuthMiddleware(testSecret), middleware.VendorMiddleware())
	vendor.GET("/products", h.GetVendorProducts)
	vendor.POST("/products", h.CreateProduct)
	vendor.PUT("/products/:id", h.UpdateProduct)
	vendor.DELETE("/products/:id", h.DeactivateProduct)

	return r
}

func setupCartRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	cart := &CartHandler{DB: db}
	wishlist := &WishlistHandler{DB: db}

	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(testSecret))
	protected.GET("/cart", cart.GetCart)
	protected.POST("/cart", cart.AddToCart)
	protected.PUT("/cart/:id", cart.UpdateCartItem)
	protected.DELETE("/cart/:id", cart.RemoveFromCart)
	protected.DELETE("/cart", cart.ClearCart)

	protected.GET("/wishlist", wishlist.GetWishlist)
	protected.POST("/wishlist", wishlist.AddToWishlist)
	protected.DELETE("/wishlist/:id", wishlist.RemoveFromWishlist)
	protected.POST("/wishlist/:id/move-to-cart", wishlist.MoveToCart)

	return r
}

func setupOrderRouter(db *gorm.DB, notifier *recordingNotifier) *gin.Engine {
	r := gin.New()
	h := &OrderHandler{DB: db, Notifier: notifier, Shop: testShop, Log: zerolog.Nop()}

	api := r.Group("/api")
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(testSecret))
	protected.POST("/orders", h.CreateOrder)
	protected.GET("/orders", h.GetOrders)
	protected.GET("/orders/:id", h.GetOrder)
	protected.GET("/orders/:id/confirmation", h.GetOrderConfirmation)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(testSecret), middleware.AdminMiddleware())
	admin.GET("/orders", h.GetAllOrders)
	admin.PUT("/orders/:id/status", h.UpdateOrderStatus)

	api.POST("/internal/orders/:id/confirmation-email", h.ResendConfirmationEmail)

	return r
}

func setupVendorRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	h := &VendorHandler{DB: db, Log: zerolog.Nop()}

	api := r.Group("/api")
	api.GET("/vendors/:slug", h.GetVendor)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(testSecret), middleware.AdminMiddleware())
	admin.GET("/vendors", h.GetVendors)
	admin.POST("/vendors", h.CreateVendor)
	admin.PUT("/vendors/:id/status", h.SetVendorStatus)

	return r
}

// ==================== Request Helpers ====================

// jsonRequest creates an HTTP request with JSON body.
func jsonRequest(method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// authRequest creates an HTTP request with JSON body and Authorization header.
func authRequest(method, url string, body interface{}, token string) *http.Request {
	req := jsonRequest(method, url, body)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ==================== Response Helpers ====================

// parseResponse reads the response body into a map.
func parseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// parseResponseArray reads the response body into a slice of maps.
func parseResponseArray(w *httptest.ResponseRecorder) []interface{} {
	var result []interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// envelopeData unwraps {"success": true, "data": ...}.
func envelopeData(t *testing.T, w *httptest.ResponseRecorder) interface{} {
	t.Helper()
	resp := parseResponse(w)
	if resp["success"] != true {
		t.Fatalf("expected success envelope, got %s", w.Body.String())
	}
	return resp["data"]
}
