package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-waitlist/internal/queue"
	"github.com/iliyamo/restaurant-waitlist/internal/seating"
	queue_publisher "github.com/iliyamo/restaurant-waitlist/internal/service"
)

// SeatingHandler exposes the wait queue endpoints: join, size and seat
// release. Seated parties are announced on the party.seated queue;
// publish failures are logged and never fail the request.
type SeatingHandler struct {
	Seating *seating.Controller
}

func NewSeatingHandler(ctrl *seating.Controller) *SeatingHandler {
	return &SeatingHandler{Seating: ctrl}
}

type joinQueueReq struct {
	PartySize int `json:"party_size"`
}

// JoinQueue seats the party immediately when enough seats are free,
// otherwise enqueues it and reports its headcount position.
func (h *SeatingHandler) JoinQueue(c echo.Context) error {
	var req joinQueueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email, ok := currentUserEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Seating.JoinQueue(ctx, c.Param("placeID"), email, req.PartySize)
	if err != nil {
		return writeError(c, err)
	}
	if res.Seated {
		ev := queue.PartySeatedEvent{
			RestaurantID:   res.Restaurant.ID,
			RestaurantName: res.Restaurant.Name,
			PlaceID:        res.Restaurant.PlaceID,
			UserID:         res.User.ID,
			UserEmail:      res.User.Email,
			PartySize:      req.PartySize,
			FromQueue:      false,
			AvailableSeats: res.AvailableSeats,
			SeatedAt:       time.Now().UTC().Format(time.RFC3339),
		}
		if err := queue_publisher.PublishPartySeated(ctx, ev); err != nil {
			c.Logger().Warnf("publish party.seated failed: %v", err)
		}
		return c.JSON(http.StatusOK, echo.Map{
			"seated":          true,
			"available_seats": res.AvailableSeats,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"seated":   false,
		"position": res.Position,
	})
}

// QueueSize reports the total headcount currently waiting.
func (h *SeatingHandler) QueueSize(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	size, err := h.Seating.QueueSize(ctx, c.Param("placeID"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"queue_size": size})
}

type releaseSeatsReq struct {
	SeatsReleased int `json:"seats_released"`
}

// ReleaseSeats returns seats to the restaurant and drains the queue in
// arrival order, announcing every seated party.
func (h *SeatingHandler) ReleaseSeats(c echo.Context) error {
	var req releaseSeatsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Seating.ReleaseSeats(ctx, c.Param("placeID"), req.SeatsReleased)
	if err != nil {
		return writeError(c, err)
	}
	for _, p := range res.Seated {
		ev := queue.PartySeatedEvent{
			RestaurantID:   res.Restaurant.ID,
			RestaurantName: res.Restaurant.Name,
			PlaceID:        res.Restaurant.PlaceID,
			UserID:         p.UserID,
			UserEmail:      p.UserEmail,
			PartySize:      p.PartySize,
			FromQueue:      true,
			AvailableSeats: res.AvailableSeats,
			SeatedAt:       time.Now().UTC().Format(time.RFC3339),
		}
		if err := queue_publisher.PublishPartySeated(ctx, ev); err != nil {
			c.Logger().Warnf("publish party.seated failed: %v", err)
		}
	}
	seated := make([]echo.Map, 0, len(res.Seated))
	for _, p := range res.Seated {
		seated = append(seated, echo.Map{"user_email": p.UserEmail, "party_size": p.PartySize})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"available_seats": res.AvailableSeats,
		"seated":          seated,
	})
}

// currentUserEmail resolves the email stored in context by JWTAuth or,
// for flows keyed by subject id, falls back to an explicit header.
func currentUserEmail(c echo.Context) (string, bool) {
	if v, ok := c.Get("user_email").(string); ok && v != "" {
		return v, true
	}
	return "", false
}
