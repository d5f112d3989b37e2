package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/incidentnow/incident-service/internal/errs"
)

// errorResponse — единый формат ошибок API.
type errorResponse struct {
	Code      errs.Code         `json:"code"`
	Message   string            `json:"message"`
	Details   []errs.FieldError `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

var statusByCode = map[errs.Code]int{
	errs.CodeNotFound:   http.StatusNotFound,
	errs.CodeConflict:   http.StatusConflict,
	errs.CodeDuplicate:  http.StatusConflict,
	errs.CodeValidation: http.StatusUnprocessableEntity,
	errs.CodeBadRequest: http.StatusBadRequest,
	errs.CodeInternal:   http.StatusInternalServerError,
}

func respondError(c *gin.Context, err error) {
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) {
		apiErr = &errs.Error{Code: errs.CodeInternal, Message: "Internal server error"}
	}
	status, ok := statusByCode[apiErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, errorResponse{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Details:   apiErr.Details,
		Timestamp: time.Now().UTC(),
	})
}

// bindJSON разбирает тело запроса; ошибки валидации отдаются полем details.
func bindJSON(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		details := make([]errs.FieldError, 0, len(vErrs))
		for _, fe := range vErrs {
			details = append(details, errs.FieldError{
				Field:   fe.Field(),
				Message: "failed on '" + fe.Tag() + "' validation",
			})
		}
		respondError(c, errs.Validation("Request validation failed", details...))
		return false
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		respondError(c, errs.BadRequest("Invalid type for field '%s'", typeErr.Field))
		return false
	}
	respondError(c, errs.BadRequest("Malformed request body"))
	return false
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, errs.BadRequest("Invalid value '%s' for parameter '%s'", c.Param(name), name))
		return uuid.Nil, false
	}
	return id, true
}
