package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMiddlewareAndHandler(t *testing.T) {
	app := fiber.New()
	app.Use(PrometheusMiddleware())
	app.Get("/metrics", Handler())
	app.Get("/ping/:id", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/ping/:id", "200"))

	resp, err := app.Test(httptest.NewRequest("GET", "/ping/1", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/ping/:id", "200"))
	assert.Equal(t, before+1, after)

	RecordPaymentOperation("confirm", "succeeded")
	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "pawmart_payment_operations_total")
}
