package router

import (
	"regexp"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fiberParam = regexp.MustCompile(`:(\w+)`)

// TestOpenAPIDocumentsEveryRoute keeps public/docs/v1/openapi.yml in step
// with the routes registered under /api.
func TestOpenAPIDocumentsEveryRoute(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../../public/docs/v1/openapi.yml")
	require.NoError(t, err)
	require.NoError(t, doc.Validate(loader.Context))

	app := fiber.New()
	InstallRouter(app, Deps{})

	checked := 0
	for _, route := range app.GetRoutes(true) {
		if route.Method == fiber.MethodHead || !strings.HasPrefix(route.Path, "/api/") {
			continue
		}
		path := strings.TrimSuffix(strings.TrimPrefix(route.Path, "/api"), "/")
		path = fiberParam.ReplaceAllString(path, "{$1}")

		item := doc.Paths.Value(path)
		if !assert.NotNil(t, item, "path %s is not documented", path) {
			continue
		}
		assert.NotNil(t, item.GetOperation(route.Method), "%s %s is not documented", route.Method, path)
		checked++
	}
	assert.Equal(t, 11, checked)
}
