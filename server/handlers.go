package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cloudx-io/slotauction/auctionapi"
	"github.com/cloudx-io/slotauction/core"
)

func (s *Server) listProducts(c echo.Context) error {
	products := s.engine.Products()
	views := make([]auctionapi.ProductView, len(products))
	for i, p := range products {
		views[i] = auctionapi.FromProduct(p)
	}
	return ok(c, map[string]any{"products": views})
}

func (s *Server) getProduct(c echo.Context) error {
	p, err := s.engine.Product(c.Param("id"))
	if err != nil {
		return failWith(c, err)
	}
	return ok(c, auctionapi.FromProduct(p))
}

func (s *Server) placeBid(c echo.Context) error {
	claims, found := claimsFrom(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "A valid token is required", nil)
	}

	var req auctionapi.BidRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse bid", err.Error())
	}

	productID := c.Param("id")
	bid, entry, err := s.engine.PlaceBid(c.Request().Context(), productID, claims.Bidder(), req.Price)
	if err != nil {
		s.logger.Debug("bid_rejected",
			zap.String("product_id", productID),
			zap.String("bidder_id", claims.Subject),
			zap.Float64("price", req.Price),
			zap.Error(err))
		return failWith(c, err)
	}

	return ok(c, auctionapi.BidResponse{
		Bid:     auctionapi.FromBid(bid),
		Ranking: auctionapi.FromRankingEntry(entry),
	})
}

func (s *Server) getRankings(c echo.Context) error {
	standings, err := s.engine.Rankings(c.Param("id"))
	if err != nil {
		return failWith(c, err)
	}
	return ok(c, auctionapi.FromStandings(standings))
}

// getOwnRank returns the caller's position on the full leaderboard, beyond the top-K.
func (s *Server) getOwnRank(c echo.Context) error {
	claims, found := claimsFrom(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "A valid token is required", nil)
	}

	entry, ranked, err := s.engine.RankOf(c.Param("id"), claims.Subject)
	if err != nil {
		return failWith(c, err)
	}
	if !ranked {
		return fail(c, http.StatusNotFound, "NOT_RANKED", "No bid from this user on this product", nil)
	}
	return ok(c, auctionapi.FromRankingEntry(entry))
}

func (s *Server) getResults(c echo.Context) error {
	result, err := s.engine.Results(c.Param("id"))
	if err != nil {
		return failWith(c, err)
	}
	return ok(c, auctionapi.FromResult(result))
}

func (s *Server) createProduct(c echo.Context) error {
	var payload auctionapi.ProductPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}

	p, err := s.engine.CreateProduct(c.Request().Context(), payload.Apply(s.engine.ProductDefaults()))
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(http.StatusCreated, auctionapi.FromProduct(p))
}

func (s *Server) updateProduct(c echo.Context) error {
	var payload auctionapi.ProductPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}

	p, err := s.engine.UpdateProduct(c.Request().Context(), c.Param("id"), payload.Apply)
	if err != nil {
		return failWith(c, err)
	}
	return ok(c, auctionapi.FromProduct(p))
}

func (s *Server) setStatus(c echo.Context) error {
	var payload auctionapi.StatusPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse status", err.Error())
	}
	status, err := core.ParseStatus(payload.Status)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_STATUS", err.Error(), nil)
	}

	p, err := s.engine.SetStatus(c.Request().Context(), c.Param("id"), status)
	if err != nil {
		return failWith(c, err)
	}
	s.logger.Info("status_overridden", zap.String("product_id", p.ID), zap.String("status", string(p.Status)))
	return ok(c, auctionapi.FromProduct(p))
}
