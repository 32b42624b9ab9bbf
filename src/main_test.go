package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"vms/src/config"
	"vms/src/db"
	"vms/src/lib"
	"vms/src/middlewares"
	"vms/src/models"
	"vms/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB      *gorm.DB
	Token   *string
	vendor  models.Vendor
	product models.Product
	daraja  *httptest.Server
}

var stkCounter int

func fakeDarajaServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "test-token",
			"expires_in":   "3599",
		})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		stkCounter++
		json.NewEncoder(w).Encode(map[string]string{
			"MerchantRequestID":   fmt.Sprintf("29115-%d-1", stkCounter),
			"CheckoutRequestID":   fmt.Sprintf("ws_CO_TEST_%d", stkCounter),
			"ResponseCode":        "0",
			"ResponseDescription": "Success. Request accepted for processing",
			"CustomerMessage":     "Success. Request accepted for processing",
		})
	})
	return httptest.NewServer(mux)
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	os.Setenv("JWT_SECRET", "secret")
	os.Unsetenv("KAFKA_BROKER")
	registerValidators()

	d, err := gorm.Open(sqlite.Open("file:apitest?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database: %s", err.Error())
	}
	db.NewDB(d)
	s.DB = d
	err = d.AutoMigrate(
		&models.Vendor{},
		&models.Product{},
		&models.Inventory{},
		&models.Purchase{},
		&models.Sale{},
		&models.MpesaTransaction{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	hash, _ := utils.HashPassword("password123")
	s.vendor = models.Vendor{Name: "Mama Njeri Groceries", Email: "njeri@example.com", PasswordHash: hash}
	if err := d.Create(&s.vendor).Error; err != nil {
		log.Fatalf("Could not create vendor due to error: %s\n", err.Error())
	}
	s.product = models.Product{VendorID: s.vendor.ID, Name: "Maize Flour", Unit: "2kg bag", SaleType: "quick-sell", IsActive: true}
	if err := d.Create(&s.product).Error; err != nil {
		log.Fatalf("Could not create product due to error: %s\n", err.Error())
	}
	if err := d.Create(&models.Inventory{VendorID: s.vendor.ID, ProductID: s.product.ID, Quantity: 10}).Error; err != nil {
		log.Fatalf("Could not create inventory due to error: %s\n", err.Error())
	}

	token, err := utils.GenerateJWT(s.vendor.Email, s.vendor.ID)
	if err != nil {
		log.Fatalf("Error generating JWT token: %s\n", err.Error())
	}
	s.Token = &token

	s.daraja = fakeDarajaServer()
	lib.NewDarajaClient(lib.NewDarajaClientWithConfig(&config.DarajaConfig{
		Env:            "sandbox",
		BaseURL:        s.daraja.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/api/v1/webhook/mpesa",
		Timeout:        5 * time.Second,
	}))
}

func (s *TestSuite) TearDownSuite() {
	s.daraja.Close()
	inner, err := s.DB.DB()
	if err != nil {
		log.Printf("Error accessing inner db instance: %s\n", err.Error())
		return
	}
	inner.Exec(`
	DELETE FROM sales WHERE true;
	DELETE FROM mpesa_transactions WHERE true;
	DELETE FROM purchases WHERE true;
	DELETE FROM inventories WHERE true;
	DELETE FROM products WHERE true;
	DELETE FROM vendors WHERE true;
	`)
	inner.Close()
}

func (s *TestSuite) newRouter() *gin.Engine {
	router := setupRouter()
	guestAuthRoutes(router)
	mpesaWebhookRoute(router)
	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	mpesaHandlers(authorized)
	productHandlers(authorized)
	inventoryHandlers(authorized)
	purchaseHandlers(authorized)
	saleHandlers(authorized)
	return router
}

func (s *TestSuite) authedRequest(method, url, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, url, reader)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", *s.Token))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func successCallbackBody(checkoutID, receipt string, amount float64) string {
	envelope := map[string]any{
		"Body": map[string]any{
			"stkCallback": map[string]any{
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": checkoutID,
				"ResultCode":        0,
				"ResultDesc":        "The service request is processed successfully.",
				"CallbackMetadata": map[string]any{
					"Item": []map[string]any{
						{"Name": "Amount", "Value": amount},
						{"Name": "MpesaReceiptNumber", "Value": receipt},
						{"Name": "TransactionDate", "Value": 20260901101530},
						{"Name": "PhoneNumber", "Value": 254712345678},
					},
				},
			},
		},
	}
	b, _ := json.Marshal(envelope)
	return string(b)
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestAuthRoutes() {
	router := s.newRouter()

	s.Run("Should register a new vendor", func() {
		w := httptest.NewRecorder()
		body := `{"name":"Kiosk One","email":"kiosk1@example.com","password":"password123"}`
		req, _ := http.NewRequest("POST", "/api/v1/auth/register", strings.NewReader(body))
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 200, w.Code)
	})

	s.Run("Should reject a duplicate email", func() {
		w := httptest.NewRecorder()
		body := `{"name":"Kiosk One","email":"kiosk1@example.com","password":"password123"}`
		req, _ := http.NewRequest("POST", "/api/v1/auth/register", strings.NewReader(body))
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should log in with valid credentials", func() {
		w := httptest.NewRecorder()
		body := `{"email":"njeri@example.com","password":"password123"}`
		req, _ := http.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 200, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.NotEmpty(s.T(), gjson.GetBytes(rbytes, "token").String())
	})

	s.Run("Should reject invalid credentials", func() {
		w := httptest.NewRecorder()
		body := `{"email":"njeri@example.com","password":"wrong-password"}`
		req, _ := http.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 401, w.Code)
	})
}

func (s *TestSuite) TestStkPushValidation() {
	router := s.newRouter()

	s.Run("Should reject an invalid phone number", func() {
		w := httptest.NewRecorder()
		body := fmt.Sprintf(`{"phone_number":"12345","amount":150,"product_id":%d}`, s.product.ID)
		router.ServeHTTP(w, s.authedRequest("POST", "/api/v1/mpesa/stkpush", body))
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject a zero amount", func() {
		w := httptest.NewRecorder()
		body := fmt.Sprintf(`{"phone_number":"0712345678","amount":0,"product_id":%d}`, s.product.ID)
		router.ServeHTTP(w, s.authedRequest("POST", "/api/v1/mpesa/stkpush", body))
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should require authentication", func() {
		w := httptest.NewRecorder()
		body := fmt.Sprintf(`{"phone_number":"0712345678","amount":150,"product_id":%d}`, s.product.ID)
		req, _ := http.NewRequest("POST", "/api/v1/mpesa/stkpush", strings.NewReader(body))
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 401, w.Code)
	})
}

func (s *TestSuite) TestStkPushLifecycle() {
	router := s.newRouter()

	var inventoryBefore models.Inventory
	s.Require().Nil(s.DB.Where("vendor_id = ? AND product_id = ?", s.vendor.ID, s.product.ID).First(&inventoryBefore).Error)

	w := httptest.NewRecorder()
	body := fmt.Sprintf(`{"phone_number":"0712345678","amount":150,"product_id":%d}`, s.product.ID)
	router.ServeHTTP(w, s.authedRequest("POST", "/api/v1/mpesa/stkpush", body))
	s.Require().Equal(200, w.Code)

	rbytes, err := io.ReadAll(w.Body)
	s.Require().Nil(err)
	checkoutID := gjson.GetBytes(rbytes, "data.checkout_request_id").String()
	s.Require().NotEmpty(checkoutID)
	assert.Equal(s.T(), "pending", gjson.GetBytes(rbytes, "data.status").String())

	s.Run("Should report the transaction as pending", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, s.authedRequest("GET", "/api/v1/mpesa/transactions/"+checkoutID, ""))
		assert.Equal(s.T(), 200, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), "pending", gjson.GetBytes(rbytes, "data.status").String())
	})

	receipt := fmt.Sprintf("QAX%s", checkoutID[len(checkoutID)-4:])
	s.Run("Should resolve the payment on a success callback", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/mpesa", strings.NewReader(successCallbackBody(checkoutID, receipt, 150)))
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 200, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), int64(0), gjson.GetBytes(rbytes, "ResultCode").Int())

		var sales []models.Sale
		s.Require().Nil(s.DB.Where("reference_no = ?", receipt).Find(&sales).Error)
		s.Require().Len(sales, 1)
		assert.Equal(s.T(), float64(1), sales[0].Quantity)
		assert.Equal(s.T(), float64(150), sales[0].TotalPrice)

		var item models.Inventory
		s.Require().Nil(s.DB.Where("vendor_id = ? AND product_id = ?", s.vendor.ID, s.product.ID).First(&item).Error)
		assert.Equal(s.T(), inventoryBefore.Quantity-1, item.Quantity)
	})

	s.Run("Should absorb a replayed callback without a second sale", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/mpesa", strings.NewReader(successCallbackBody(checkoutID, receipt, 150)))
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 200, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), int64(0), gjson.GetBytes(rbytes, "ResultCode").Int())

		var saleCount int64
		s.Require().Nil(s.DB.Model(&models.Sale{}).Where("reference_no = ?", receipt).Count(&saleCount).Error)
		assert.Equal(s.T(), int64(1), saleCount)
	})

	s.Run("Should report the transaction as completed", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, s.authedRequest("GET", "/api/v1/mpesa/transactions/"+checkoutID, ""))
		assert.Equal(s.T(), 200, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), "completed", gjson.GetBytes(rbytes, "data.status").String())
		assert.Equal(s.T(), receipt, gjson.GetBytes(rbytes, "data.transaction.mpesa_receipt").String())
	})

	s.Run("Should include the sale in the payment history", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, s.authedRequest("GET", "/api/v1/payments/history", ""))
		assert.Equal(s.T(), 200, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		query := fmt.Sprintf(`data.#(checkout_request_id=="%s")`, checkoutID)
		row := gjson.GetBytes(rbytes, query)
		s.Require().True(row.Exists())
		assert.Equal(s.T(), "completed", row.Get("status").String())
		assert.Equal(s.T(), float64(150), row.Get("sale_total").Float())
	})
}

func (s *TestSuite) TestWebhookEdgeCases() {
	router := s.newRouter()

	s.Run("Should ack a malformed payload with ResultCode 1", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/mpesa", strings.NewReader(`{}`))
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 200, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), int64(1), gjson.GetBytes(rbytes, "ResultCode").Int())
	})

	s.Run("Should record an unknown checkout id as an orphan", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/mpesa", strings.NewReader(successCallbackBody("ws_CO_NEVER_SEEN", "QZZ111BBB2", 60)))
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 200, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), int64(0), gjson.GetBytes(rbytes, "ResultCode").Int())

		var orphan models.MpesaTransaction
		s.Require().Nil(s.DB.Where("checkout_request_id = ?", "ws_CO_NEVER_SEEN").First(&orphan).Error)
		assert.Nil(s.T(), orphan.VendorID)
	})
}

func (s *TestSuite) TestCommerceRoutes() {
	router := s.newRouter()

	s.Run("Should create and list products", func() {
		w := httptest.NewRecorder()
		body := `{"name":"Cooking Oil","unit":"1L bottle","sale_type":"manual"}`
		router.ServeHTTP(w, s.authedRequest("POST", "/api/v1/products", body))
		assert.Equal(s.T(), 200, w.Code)

		w = httptest.NewRecorder()
		router.ServeHTTP(w, s.authedRequest("GET", "/api/v1/products", ""))
		assert.Equal(s.T(), 200, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.GreaterOrEqual(s.T(), len(gjson.GetBytes(rbytes, "data").Array()), 1)
	})

	s.Run("Should restock inventory through a purchase", func() {
		w := httptest.NewRecorder()
		body := fmt.Sprintf(`{"product_id":%d,"quantity":12,"unit_cost":110}`, s.product.ID)
		router.ServeHTTP(w, s.authedRequest("POST", "/api/v1/purchases", body))
		assert.Equal(s.T(), 200, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), float64(1320), gjson.GetBytes(rbytes, "data.total_cost").Float())

		var item models.Inventory
		s.Require().Nil(s.DB.Where("vendor_id = ? AND product_id = ?", s.vendor.ID, s.product.ID).First(&item).Error)
		assert.GreaterOrEqual(s.T(), item.Quantity, float64(12))
	})

	s.Run("Should record a manual cash sale", func() {
		w := httptest.NewRecorder()
		body := fmt.Sprintf(`{"product_id":%d,"quantity":2,"unit_price":160}`, s.product.ID)
		router.ServeHTTP(w, s.authedRequest("POST", "/api/v1/sales", body))
		assert.Equal(s.T(), 200, w.Code)
		rbytes, _ := io.ReadAll(w.Body)
		assert.Equal(s.T(), "cash", gjson.GetBytes(rbytes, "data.payment_type").String())
		assert.Equal(s.T(), float64(320), gjson.GetBytes(rbytes, "data.total_price").Float())
	})
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
