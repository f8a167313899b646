package controllers

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PawMart/internal/pkg/payment"
	"github.com/ManuelReschke/PawMart/internal/pkg/usercontext"
)

var validate = validator.New()

// respondError renders the error envelope. Gateway and internal failures
// get an opaque message.
func respondError(c *fiber.Ctx, err error) error {
	kind := payment.KindOf(err)
	status := payment.HTTPStatus(kind)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": payment.PublicMessage(err),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": msg})
}

// bindBody parses and validates a JSON request body. On failure it writes
// the 400 response and returns false; the handler must stop there.
func bindBody(c *fiber.Ctx, out interface{}) bool {
	if err := c.BodyParser(out); err != nil {
		_ = badRequest(c, "invalid request body")
		return false
	}
	if err := validate.Struct(out); err != nil {
		_ = badRequest(c, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid request body"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

// uintParam reads a positive integer path parameter.
func uintParam(c *fiber.Ctx, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

func pagination(c *fiber.Ctx) (offset, limit int) {
	return c.QueryInt("offset", 0), c.QueryInt("limit", 0)
}

func caller(c *fiber.Ctx) payment.Caller {
	u := usercontext.GetUserContext(c)
	return payment.Caller{UserID: u.UserID, IsAdmin: u.IsAdmin}
}
