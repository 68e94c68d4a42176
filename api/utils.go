package api

import (
	"github.com/gin-gonic/gin"
	"github.com/judgegodwins/chess-relay/http_utils"
	"github.com/judgegodwins/chess-relay/tokens"
)

const (
	ErrorMessage500 = "Something went wrong!"
)

func errorResponse(msg string) http_utils.BaseResponse {
	return http_utils.NewBaseResponse(false, msg)
}

func successResponse[T interface{}](msg string, data T) http_utils.DataResponse {
	return http_utils.NewDataResponse(msg, data)
}

func validationResponse(err error) http_utils.ValidationErrorResponse {
	return http_utils.ValidationErrorResponse{
		BaseResponse: errorResponse("invalid body, validation failed"),
		Errors:       http_utils.ValidationErrors(err),
	}
}

func GetPayload(ctx *gin.Context) (*tokens.Payload, bool) {
	v, ok := ctx.Get(string(authContextKey))

	if !ok {
		return nil, ok
	}

	payload, ok := v.(*tokens.Payload)

	return payload, ok
}
