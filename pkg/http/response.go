package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the envelope with the given status.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

func TooManyRequestsResponse(c echo.Context) error {
	return AppErrorResponse(c, TooManyRequestsError("Too many requests, retry later"))
}

// AppErrorResponse writes application error response. Internal details of
// non-application errors are not exposed.
func AppErrorResponse(c echo.Context, err error) error {
	appErr := AsAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		return DataResponse(c, appErr.Status, []*AppError{{Code: appErr.Code, Message: appErr.Message}})
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
