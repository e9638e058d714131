package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cloudx-io/slotauction/auctionapi"
	"github.com/cloudx-io/slotauction/core"
)

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

func fail(c echo.Context, status int, code, message string, details any) error {
	return c.JSON(status, auctionapi.ErrorResponse{Code: code, Message: message, Details: details})
}

var errorStatuses = []struct {
	err    error
	status int
	code   string
}{
	{core.ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{core.ErrAuctionNotActive, http.StatusConflict, "AUCTION_NOT_ACTIVE"},
	{core.ErrAuctionNotEnded, http.StatusConflict, "AUCTION_NOT_ENDED"},
	{core.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{core.ErrPriceTooLow, http.StatusBadRequest, "PRICE_TOO_LOW"},
	{core.ErrInvalidScoreInput, http.StatusBadRequest, "INVALID_SCORE_INPUT"},
	{core.ErrInvalidProduct, http.StatusBadRequest, "INVALID_PRODUCT"},
	{core.ErrAuthenticationRequired, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED"},
}

// failWith maps a domain error to its HTTP status. Unknown errors are logged and reported as 500.
func failWith(c echo.Context, err error) error {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return fail(c, e.status, e.code, err.Error(), nil)
		}
	}
	zap.L().Error("request_failed", zap.String("path", c.Path()), zap.Error(err))
	return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
}
