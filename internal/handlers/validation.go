package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/gigbook/pkg/errors"
	"github.com/charlesng35/gigbook/pkg/response"
	appValidator "github.com/charlesng35/gigbook/pkg/validator"
)

const (
	defaultPageLimit = 25
	maxPageLimit     = 100
)

// bindAndValidate decodes the JSON body into dest and applies its validate
// tags. Undecodable bodies answer 400; rule failures answer 422 with the
// failing fields listed in the error details.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, validationError(err))
		return false
	}
	return true
}

func validationError(err error) *appErrors.AppError {
	var failures appValidator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return appErrors.Invalid("invalid request payload")
	}
	return appErrors.Invalid(failures.Error()).WithDetails(map[string]any{"fields": failures.Fields()})
}

// pageParams reads limit and offset, clamping limit to 1..100.
func pageParams(c *gin.Context) (limit, offset int) {
	limit = queryInt(c, "limit", defaultPageLimit)
	if limit <= 0 {
		limit = defaultPageLimit
	}
	limit = min(limit, maxPageLimit)
	return limit, max(0, queryInt(c, "offset", 0))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
