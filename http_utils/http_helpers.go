package http_utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// SendResponse writes payload as JSON with the given status code.
func SendResponse(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "http_utils").Msg("marshal response")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

// ValidationErrors flattens a validator error into one message per field.
// Errors of any other kind yield a single message.
func ValidationErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	return lo.Map(verrs, func(item validator.FieldError, index int) string {
		return item.Error()
	})
}

// ValidateStruct validates s and, on failure, returns the response to send.
func ValidateStruct(v *validator.Validate, s interface{}) (ValidationErrorResponse, bool) {
	if err := v.Struct(s); err != nil {
		return ValidationErrorResponse{
			BaseResponse: NewBaseResponse(false, "invalid body, validation failed"),
			Errors:       ValidationErrors(err),
		}, false
	}
	return ValidationErrorResponse{}, true
}
