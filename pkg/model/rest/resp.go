package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
)

const (
	CodeSuccess int = 2000
)

var (
	successMeta = Meta{
		Code:    CodeSuccess,
		Message: "OK",
	}
)

type Meta struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Response struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data"`
}

type ListData struct {
	Rows       interface{} `json:"rows"`
	TotalCount int         `json:"total_count"`
}

func newResponse(_ context.Context, meta Meta, data interface{}) Response {
	return Response{
		Meta: meta,
		Data: data,
	}
}

func SuccessResp(ctx context.Context, data interface{}) Response {
	return newResponse(ctx, successMeta, data)
}

func ErrorResp(ctx context.Context, code int, errMsg string, data interface{}) Response {
	meta := Meta{
		Code:    code,
		Message: errMsg,
	}
	return newResponse(ctx, meta, data)
}

type Error struct {
	Code        int
	Message     string
	OriginError error
}

func (e Error) Error() string {
	return fmt.Sprintf("Code %d.Message %s.Origin error %+v", e.Code, e.Message, e.OriginError)
}

func NewListData(datas interface{}, totalCount int) ListData {
	return ListData{
		Rows:       datas,
		TotalCount: totalCount,
	}
}

// HTTPStatusForCode maps service error codes to HTTP statuses. Analysis
// endpoints answer 404 uniformly for both missing and unauthorized ids.
func HTTPStatusForCode(code int) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case errors.CodeAnalysisNotFound, errors.RequestDataNotExisted:
		return http.StatusNotFound
	case errors.CodeAnalysisInFlight, errors.RequestDataExists:
		return http.StatusConflict
	case errors.CodeRateLimited:
		return http.StatusTooManyRequests
	case errors.RequestParameterInvalid, errors.CodeInvalidArgument:
		return http.StatusBadRequest
	case errors.AuthFailed, errors.PermissionDeny:
		return http.StatusNotFound // no existence disclosure
	default:
		return http.StatusInternalServerError
	}
}
