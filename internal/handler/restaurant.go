package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-waitlist/internal/catalog"
	"github.com/iliyamo/restaurant-waitlist/internal/inventory"
	"github.com/iliyamo/restaurant-waitlist/internal/model"
	"github.com/iliyamo/restaurant-waitlist/internal/repository"
)

// DefaultStockSeed is the stock level assigned to a variation that
// carries no explicit quantity in a menu upsert.
const DefaultStockSeed = 100

// RestaurantHandler serves menu and seat information for a restaurant
// and runs the staff-facing catalog and inventory flows.
type RestaurantHandler struct {
	Restaurants *repository.RestaurantRepo
	Menu        *repository.MenuRepo
	Mapper      *catalog.Mapper
	Ledger      *inventory.Ledger
}

func NewRestaurantHandler(r *repository.RestaurantRepo, m *repository.MenuRepo, mapper *catalog.Mapper, ledger *inventory.Ledger) *RestaurantHandler {
	return &RestaurantHandler{Restaurants: r, Menu: m, Mapper: mapper, Ledger: ledger}
}

func (h *RestaurantHandler) restaurant(c echo.Context) (model.Restaurant, bool) {
	placeID := c.Param("placeID")
	rest, err := h.Restaurants.GetByPlaceID(c.Request().Context(), placeID)
	if err != nil {
		if err == sql.ErrNoRows {
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "restaurant " + placeID + " does not exist"})
		} else {
			_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		return model.Restaurant{}, false
	}
	return rest, true
}

// GetMenu returns the full category > item > variation tree.
func (h *RestaurantHandler) GetMenu(c echo.Context) error {
	rest, ok := h.restaurant(c)
	if !ok {
		return nil
	}
	menu, err := h.Menu.MenuByRestaurant(c.Request().Context(), rest.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load menu failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"restaurant": echo.Map{"name": rest.Name, "place_id": rest.PlaceID},
		"menu":       menu,
	})
}

// AvailableSeats reports the current seat counters.
func (h *RestaurantHandler) AvailableSeats(c echo.Context) error {
	rest, ok := h.restaurant(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, echo.Map{
		"place_id":        rest.PlaceID,
		"total_seats":     rest.TotalSeats,
		"available_seats": rest.AvailableSeats,
	})
}

// ----- menu upsert -----

type variationReq struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   *int   `json:"quantity,omitempty"`
}
type itemReq struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Variations  []variationReq `json:"variations"`
}
type categoryReq struct {
	Name  string    `json:"name"`
	Items []itemReq `json:"items"`
}
type upsertMenuReq struct {
	Categories []categoryReq `json:"categories"`
}

type upsertedVariation struct {
	Name        string `json:"name"`
	ReferenceID string `json:"reference_id"`
	ExternalID  string `json:"external_id"`
	Quantity    int    `json:"quantity"`
}
type upsertedItem struct {
	Name        string              `json:"name"`
	ReferenceID string              `json:"reference_id"`
	ExternalID  string              `json:"external_id"`
	Variations  []upsertedVariation `json:"variations"`
}
type upsertedCategory struct {
	Name        string         `json:"name"`
	ReferenceID string         `json:"reference_id"`
	ExternalID  string         `json:"external_id"`
	Items       []upsertedItem `json:"items"`
}

// UpsertMenu pushes a menu tree into the POS catalog and mirrors the
// assigned ids locally, then seeds stock for every new variation
// through the inventory ledger.
func (h *RestaurantHandler) UpsertMenu(c echo.Context) error {
	rest, ok := h.restaurant(c)
	if !ok {
		return nil
	}
	var req upsertMenuReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.Categories) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one category required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	out := make([]upsertedCategory, 0, len(req.Categories))
	for _, cr := range req.Categories {
		category, err := h.Mapper.UpsertCategory(ctx, rest, cr.Name)
		if err != nil {
			return writeError(c, err)
		}
		uc := upsertedCategory{Name: category.Name, ReferenceID: category.ReferenceID}
		if category.ExternalID != nil {
			uc.ExternalID = *category.ExternalID
		}
		for _, ir := range cr.Items {
			spec := catalog.ItemSpec{Name: ir.Name, Description: ir.Description}
			for _, vr := range ir.Variations {
				qty := DefaultStockSeed
				if vr.Quantity != nil {
					qty = *vr.Quantity
				}
				spec.Variations = append(spec.Variations, catalog.VariationSpec{
					Name:       vr.Name,
					PriceCents: vr.PriceCents,
					Quantity:   qty,
				})
			}
			item, variations, err := h.Mapper.UpsertItem(ctx, rest, category, spec)
			if err != nil {
				return writeError(c, err)
			}
			ui := upsertedItem{Name: item.Name, ReferenceID: item.ReferenceID}
			if item.ExternalID != nil {
				ui.ExternalID = *item.ExternalID
			}
			for i, v := range variations {
				// Seed the external ledger so the POS agrees with the
				// local stock mirror from the start.
				seeded := v.Quantity
				if outc, err := h.Ledger.Reconcile(ctx, v.ReferenceID, spec.Variations[i].Quantity, inventory.ReasonRestock); err == nil {
					seeded = outc.Quantity
				} else {
					c.Logger().Warnf("stock seed failed for %s: %v", v.ReferenceID, err)
				}
				uv := upsertedVariation{Name: v.Name, ReferenceID: v.ReferenceID, Quantity: seeded}
				if v.ExternalID != nil {
					uv.ExternalID = *v.ExternalID
				}
				ui.Variations = append(ui.Variations, uv)
			}
			uc.Items = append(uc.Items, ui)
		}
		out = append(out, uc)
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": out})
}

// ----- inventory reconciliation -----

type inventoryAdjustmentReq struct {
	VariationRef string `json:"variation_ref"`
	Quantity     int    `json:"quantity"`
}
type reconcileReq struct {
	Reason      string                   `json:"reason"`
	Adjustments []inventoryAdjustmentReq `json:"adjustments"`
}

type reconcileOutcome struct {
	VariationRef string `json:"variation_ref"`
	Ok           bool   `json:"ok"`
	FromState    string `json:"from_state,omitempty"`
	ToState      string `json:"to_state,omitempty"`
	Adjusted     int    `json:"adjusted,omitempty"`
	Quantity     int    `json:"quantity,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ReconcileInventory runs a batch reconciliation and reports one
// outcome per variation; a failure on one never aborts the rest.
func (h *RestaurantHandler) ReconcileInventory(c echo.Context) error {
	if _, ok := h.restaurant(c); !ok {
		return nil
	}
	var req reconcileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.Adjustments) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one adjustment required"})
	}
	reason := inventory.Reason(req.Reason)
	switch reason {
	case inventory.ReasonRestock, inventory.ReasonSale, inventory.ReasonWaste:
	case "":
		reason = inventory.ReasonRestock
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown reason"})
	}

	adjustments := make([]inventory.Adjustment, 0, len(req.Adjustments))
	for _, a := range req.Adjustments {
		adjustments = append(adjustments, inventory.Adjustment{VariationRef: a.VariationRef, Quantity: a.Quantity})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	results := h.Ledger.ReconcileBatch(ctx, adjustments, reason)
	out := make([]reconcileOutcome, 0, len(results))
	failed := 0
	for _, r := range results {
		o := reconcileOutcome{VariationRef: r.VariationRef, Ok: r.Err == nil}
		if r.Err != nil {
			failed++
			o.Error = r.Err.Error()
		} else {
			o.FromState = r.Outcome.FromState
			o.ToState = r.Outcome.ToState
			o.Adjusted = r.Outcome.Adjusted
			o.Quantity = r.Outcome.Quantity
		}
		out = append(out, o)
	}
	status := http.StatusOK
	if failed == len(results) {
		status = http.StatusBadGateway
	} else if failed > 0 {
		status = http.StatusMultiStatus
	}
	return c.JSON(status, echo.Map{"results": out})
}
