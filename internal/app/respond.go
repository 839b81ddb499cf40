package app

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"forumhub/internal/apperr"
	"forumhub/internal/service"
	"forumhub/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const requesterKey = "requester"

var registerTagNames sync.Once

// useJSONFieldNames makes validation errors report the json name of a field.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// requesterFrom returns the authenticated caller, or nil for anonymous requests.
func requesterFrom(c *gin.Context) *service.Requester {
	v, ok := c.Get(requesterKey)
	if !ok {
		return nil
	}
	r, _ := v.(*service.Requester)
	return r
}

// respondError writes err using the status code of its apperr kind.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		util.Logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	util.ErrorResponse(c, kind.HTTPStatus(), apperr.Message(err), nil)
}

// bindError renders a request binding failure, with one message per invalid field.
func bindError(c *gin.Context, err error) {
	var validationErr validator.ValidationErrors
	if !errors.As(err, &validationErr) {
		util.BadRequest(c, "Invalid request body")
		return
	}
	fields := make(map[string]string, len(validationErr))
	for _, fieldErr := range validationErr {
		fields[fieldErr.Field()] = fieldMessage(fieldErr)
	}
	util.ErrorResponse(c, http.StatusBadRequest, "Validation failed", gin.H{"errors": fields})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "uuid":
		return "must be a valid id"
	case "min":
		return fmt.Sprintf("must be at least %s %s", fe.Param(), unit(fe))
	case "max":
		return fmt.Sprintf("must be at most %s %s", fe.Param(), unit(fe))
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

func unit(fe validator.FieldError) string {
	if fe.Kind() == reflect.Slice {
		return "items"
	}
	return "characters"
}

// queryInt reads a positive integer query parameter. Zero means "use the default".
func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
