package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PawMart/app/controllers"
	"github.com/ManuelReschke/PawMart/app/models"
	"github.com/ManuelReschke/PawMart/app/repository"
	"github.com/ManuelReschke/PawMart/internal/pkg/gateway"
	"github.com/ManuelReschke/PawMart/internal/pkg/gateway/gatewaytest"
	"github.com/ManuelReschke/PawMart/internal/pkg/middleware"
	"github.com/ManuelReschke/PawMart/internal/pkg/payment"
	"github.com/ManuelReschke/PawMart/internal/pkg/testutil"
)

const jwtSecret = "router-test-secret"

type testApp struct {
	app *fiber.App
	db  *gorm.DB
	gw  *gatewaytest.Fake
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, 1, models.ROLE_USER)
	testutil.SeedUser(t, db, 2, models.ROLE_USER)
	testutil.SeedUser(t, db, 3, models.ROLE_ADMIN)
	testutil.SeedProduct(t, db, 1, 10, "50.00")
	testutil.SeedOrder(t, db, 100, 1, testutil.Item{ProductID: 1, Quantity: 1, UnitPrice: "50.00"})

	repos := repository.NewFactory(db)
	gw := gatewaytest.NewFake()
	svc := payment.NewService(repos, gw, payment.Config{
		SupportedCurrencies: []string{"usd", "eur"},
		DefaultCurrency:     "usd",
		WebhookSecret:       "whsec_test",
	})

	app := fiber.New()
	InstallRouter(app, Deps{
		Payments:  svc,
		Repos:     repos,
		Health:    repos,
		JWTSecret: jwtSecret,
	})
	return &testApp{app: app, db: db, gw: gw}
}

func (a *testApp) do(t *testing.T, method, path string, userID uint, body interface{}, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case []byte:
			reader = bytes.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := middleware.IssueToken(jwtSecret, userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)
	status, body := a.do(t, fiber.MethodGet, "/health", 0, nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestHealthReportsCache(t *testing.T) {
	repos := repository.NewFactory(testutil.NewDB(t))
	down := controllers.PingFunc(func(context.Context) error { return errors.New("connection refused") })

	app := fiber.New()
	InstallRouter(app, Deps{Repos: repos, Health: repos, Cache: down})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "unavailable", body["cache"])
}

func TestPaymentRoutesRequireToken(t *testing.T) {
	a := newTestApp(t)
	status, body := a.do(t, fiber.MethodPost, "/api/payments/create-payment-intent", 0, fiber.Map{"order_id": 100, "amount": 5000}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "error", body["status"])
}

func TestCreateIntentAndConfirm(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, fiber.MethodPost, "/api/payments/create-payment-intent", 1,
		fiber.Map{"order_id": 100, "amount": 5000, "currency": "USD"},
		map[string]string{"Idempotency-Key": "checkout-100"})
	require.Equal(t, fiber.StatusCreated, status, body)
	intentID, _ := body["id"].(string)
	require.NotEmpty(t, intentID)
	assert.NotEmpty(t, body["client_secret"])
	assert.Equal(t, "usd", body["currency"])
	assert.Equal(t, "pk_test_fake", body["gateway_public_key"])
	assert.Equal(t, "checkout-100", a.gw.LastParams.IdempotencyKey)

	a.gw.SetStatus(intentID, gateway.StatusSucceeded, "")
	status, body = a.do(t, fiber.MethodPost, "/api/payments/confirm-payment", 1,
		fiber.Map{"order_id": 100, "payment_intent_id": intentID}, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "success", body["status"])
	assert.NotEmpty(t, body["purchase_order_number"])
	assert.Equal(t, 9, testutil.Available(t, a.db, 1))

	status, body = a.do(t, fiber.MethodGet, "/api/payments/100/payment-state", 1, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.OrderStatePaid, body["order_state"])
	assert.Equal(t, models.PaymentStatePaid, body["payment_state"])

	status, body = a.do(t, fiber.MethodGet, "/api/payments/transactions/100", 1, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])
}

func TestCreateIntentValidation(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, fiber.MethodPost, "/api/payments/create-payment-intent", 1, []byte("{not json"), nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "error", body["status"])

	status, _ = a.do(t, fiber.MethodPost, "/api/payments/create-payment-intent", 1, fiber.Map{"amount": 5000}, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = a.do(t, fiber.MethodPost, "/api/payments/create-payment-intent", 1, fiber.Map{"order_id": 100, "amount": 0}, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "error", body["status"])
	assert.NotEmpty(t, body["message"])
}

func TestForeignOrderIsForbidden(t *testing.T) {
	a := newTestApp(t)
	status, body := a.do(t, fiber.MethodPost, "/api/payments/create-payment-intent", 2, fiber.Map{"order_id": 100, "amount": 5000}, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "error", body["status"])
}

func TestGatewayFailureIsOpaque(t *testing.T) {
	a := newTestApp(t)
	a.gw.CreateErr = &gateway.Error{Kind: gateway.KindUnreachable, Message: "dial tcp 10.0.0.1:443: connection refused"}

	status, body := a.do(t, fiber.MethodPost, "/api/payments/create-payment-intent", 1, fiber.Map{"order_id": 100, "amount": 5000}, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.NotContains(t, body["message"], "10.0.0.1")
}

func TestWebhookRoute(t *testing.T) {
	a := newTestApp(t)
	payload := gatewaytest.IntentEvent("evt_route_1", gateway.EventIntentSucceeded, "pi_unknown", gateway.StatusSucceeded, "")

	status, _ := a.do(t, fiber.MethodPost, "/api/webhooks/gateway", 0, payload, map[string]string{"Stripe-Signature": "forged"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := a.do(t, fiber.MethodPost, "/api/webhooks/gateway", 0, payload, map[string]string{"Stripe-Signature": "valid"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, payment.WebhookReceived, body["status"])
	assert.Equal(t, "evt_route_1", body["event_id"])

	status, body = a.do(t, fiber.MethodPost, "/api/webhooks/gateway", 0, payload, map[string]string{"Stripe-Signature": "valid"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, payment.WebhookDuplicate, body["status"])
}

func TestAdminRoutes(t *testing.T) {
	a := newTestApp(t)

	status, _ := a.do(t, fiber.MethodPut, "/api/admin/orders/100/state", 1, fiber.Map{"state": "Canceled"}, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = a.do(t, fiber.MethodPut, "/api/admin/orders/100/state", 3, fiber.Map{"state": "Lost"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := a.do(t, fiber.MethodPut, "/api/admin/orders/100/state", 3, fiber.Map{"state": "Canceled", "reason": "customer called"}, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	order := body["order"].(map[string]interface{})
	assert.Equal(t, models.OrderStateCanceled, order["state"])

	status, body = a.do(t, fiber.MethodGet, "/api/admin/webhooks", 3, nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])
}

func TestCustomerOrders(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, fiber.MethodGet, "/api/orders", 1, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["orders"], 1)

	status, _ = a.do(t, fiber.MethodPost, "/api/orders/100/cancel", 2, nil, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = a.do(t, fiber.MethodPost, "/api/orders/abc/cancel", 1, nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = a.do(t, fiber.MethodPost, "/api/orders/100/cancel", 1, fiber.Map{"reason": "changed my mind"}, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	order := body["order"].(map[string]interface{})
	assert.Equal(t, models.OrderStateCanceled, order["state"])
}

func TestRejectedBodiesLeaveOrderUntouched(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, fiber.MethodPost, "/api/payments/create-payment-intent", 1, fiber.Map{"order_id": 100, "amount": 5000}, nil)
	require.Equal(t, fiber.StatusCreated, status, body)
	intentID := body["id"].(string)
	a.gw.SetStatus(intentID, gateway.StatusSucceeded, "")

	tests := []struct {
		name   string
		method string
		path   string
		userID uint
		body   interface{}
	}{
		{"confirm malformed", fiber.MethodPost, "/api/payments/confirm-payment", 1, []byte("{broken")},
		{"confirm missing intent", fiber.MethodPost, "/api/payments/confirm-payment", 1, fiber.Map{"order_id": 100}},
		{"cancel malformed", fiber.MethodPost, "/api/orders/100/cancel", 1, []byte(`{"reason":`)},
		{"admin state malformed", fiber.MethodPut, "/api/admin/orders/100/state", 3, []byte("{state")},
		{"admin state missing", fiber.MethodPut, "/api/admin/orders/100/state", 3, fiber.Map{"reason": "no state"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := a.do(t, tc.method, tc.path, tc.userID, tc.body, nil)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, "error", body["status"])

			var order models.Order
			require.NoError(t, a.db.First(&order, 100).Error)
			assert.Equal(t, models.OrderStatePending, order.State)
			assert.Equal(t, models.PaymentStatePending, order.PaymentState)
			assert.Equal(t, 10, testutil.Available(t, a.db, 1))
		})
	}
}
