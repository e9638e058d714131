package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cloudx-io/slotauction/auctionapi"
	"github.com/cloudx-io/slotauction/broadcast"
	"github.com/cloudx-io/slotauction/core"
)

// follower is the side of a viewer connection that joins a product's stream.
type follower interface {
	Follow(productID string, initial ...[]byte)
}

// serveWS upgrades an authenticated request and serves the viewer until it disconnects.
// The token is checked once, before the upgrade.
func (s *Server) serveWS(c echo.Context) error {
	claims, found := claimsFrom(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "A valid token is required", nil)
	}

	conn, err := broadcast.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("ws_upgrade_failed", zap.String("user_id", claims.Subject), zap.Error(err))
		return nil
	}

	s.logger.Debug("ws_connected", zap.String("user_id", claims.Subject))
	broadcast.NewClient(s.hub, conn, claims.Subject, s.handleControl, s.logger).Serve()
	s.logger.Debug("ws_disconnected", zap.String("user_id", claims.Subject))
	return nil
}

func (s *Server) handleControl(client *broadcast.Client, msg auctionapi.Message) {
	switch msg.Type {
	case auctionapi.TypeSubscribe, auctionapi.TypeSubscribeRankings:
		s.join(client, msg.Type, msg.ProductID)
	default:
		s.logger.Debug("ws_unknown_message", zap.String("user_id", client.UserID), zap.String("type", msg.Type))
	}
}

// join subscribes f to productID and answers with a snapshot of the requested stream. The
// snapshot is taken and queued under the product lock, so no event published for the product
// can fall between the snapshot and the subscription.
func (s *Server) join(f follower, kind, productID string) {
	if productID == "" {
		return
	}

	err := s.engine.WithSnapshot(productID, func(p core.Product, standings core.Standings) {
		var frame []byte
		var err error
		if kind == auctionapi.TypeSubscribeRankings {
			frame, err = auctionapi.EncodeMessage(auctionapi.TypeRankingsUpdate, productID, auctionapi.FromStandings(standings))
		} else {
			frame, err = auctionapi.EncodeMessage(auctionapi.TypeProductUpdate, productID, auctionapi.FromProduct(p))
		}
		if err != nil {
			s.logger.Error("ws_snapshot_encode_failed", zap.String("product_id", productID), zap.Error(err))
			f.Follow(productID)
			return
		}
		f.Follow(productID, frame)
	})
	if err != nil {
		// Unknown products are followed without a snapshot
		f.Follow(productID)
	}
}
