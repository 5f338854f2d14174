package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPClient talks to a Square-compatible POS REST API.  All calls are
// synchronous request/response; idempotency is provided by the remote
// side keyed on the token passed per call.
type HTTPClient struct {
	baseURL    string
	token      string
	locationID string
	hc         *http.Client
}

// NewHTTPClient builds a client for the given API base URL and bearer
// token.  locationID is the POS location all inventory and order calls
// are scoped to.
func NewHTTPClient(baseURL, token, locationID string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		locationID: locationID,
		hc:         &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends a JSON request and decodes the JSON response into out (when
// out is non-nil).  Non-2xx responses and transport failures are
// returned as *Error so callers can classify them.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, Err: err}
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Op: op, Detail: string(raw)}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Op: op, Err: err}
		}
	}
	return nil
}

func (c *HTTPClient) UpsertCatalogObject(ctx context.Context, idempotencyKey string, object CatalogObject) (CatalogObject, error) {
	body := struct {
		IdempotencyKey string        `json:"idempotency_key"`
		Object         CatalogObject `json:"object"`
	}{idempotencyKey, object}
	var out struct {
		CatalogObject CatalogObject `json:"catalog_object"`
	}
	if err := c.do(ctx, "upsert catalog object", http.MethodPost, "/v2/catalog/object", body, &out); err != nil {
		return CatalogObject{}, err
	}
	return out.CatalogObject, nil
}

// wireChange is the JSON shape of a single inventory adjustment.
// Quantities travel as strings on the wire.
type wireChange struct {
	Type       string `json:"type"`
	Adjustment struct {
		LocationID      string `json:"location_id"`
		CatalogObjectID string `json:"catalog_object_id"`
		FromState       string `json:"from_state"`
		ToState         string `json:"to_state"`
		Quantity        string `json:"quantity"`
		OccurredAt      string `json:"occurred_at"`
	} `json:"adjustment"`
}

func (c *HTTPClient) BatchChangeInventory(ctx context.Context, idempotencyKey string, changes []InventoryChange) error {
	wire := make([]wireChange, 0, len(changes))
	for _, ch := range changes {
		var w wireChange
		w.Type = "ADJUSTMENT"
		w.Adjustment.LocationID = c.locationID
		w.Adjustment.CatalogObjectID = ch.ObjectID
		w.Adjustment.FromState = ch.FromState
		w.Adjustment.ToState = ch.ToState
		w.Adjustment.Quantity = strconv.Itoa(ch.Quantity)
		w.Adjustment.OccurredAt = ch.OccurredAt.UTC().Format(time.RFC3339)
		wire = append(wire, w)
	}
	body := struct {
		IdempotencyKey string       `json:"idempotency_key"`
		Changes        []wireChange `json:"changes"`
	}{idempotencyKey, wire}
	return c.do(ctx, "batch change inventory", http.MethodPost, "/v2/inventory/changes/batch-create", body, nil)
}

func (c *HTTPClient) BatchRetrieveInventoryCounts(ctx context.Context, objectIDs []string) ([]Count, error) {
	body := struct {
		CatalogObjectIDs []string `json:"catalog_object_ids"`
		LocationIDs      []string `json:"location_ids"`
	}{objectIDs, []string{c.locationID}}
	var out struct {
		Counts []struct {
			CatalogObjectID string `json:"catalog_object_id"`
			Quantity        string `json:"quantity"`
		} `json:"counts"`
	}
	if err := c.do(ctx, "batch retrieve inventory counts", http.MethodPost, "/v2/inventory/counts/batch-retrieve", body, &out); err != nil {
		return nil, err
	}
	counts := make([]Count, 0, len(out.Counts))
	for _, ct := range out.Counts {
		qty, err := strconv.Atoi(ct.Quantity)
		if err != nil {
			return nil, &Error{Op: "batch retrieve inventory counts", Err: fmt.Errorf("bad quantity %q: %w", ct.Quantity, err)}
		}
		counts = append(counts, Count{ObjectID: ct.CatalogObjectID, Quantity: qty})
	}
	return counts, nil
}

// wireOrder mirrors the order snapshot returned by the POS.
type wireOrder struct {
	ID         string `json:"id"`
	LocationID string `json:"location_id"`
	State      string `json:"state"`
	TotalMoney Money  `json:"total_money"`
	LineItems  []struct {
		CatalogObjectID string `json:"catalog_object_id"`
		Quantity        string `json:"quantity"`
	} `json:"line_items"`
}

func (w wireOrder) toOrder(op string) (Order, error) {
	o := Order{ID: w.ID, LocationID: w.LocationID, State: w.State, TotalMoney: w.TotalMoney}
	for _, li := range w.LineItems {
		qty, err := strconv.Atoi(li.Quantity)
		if err != nil {
			return Order{}, &Error{Op: op, Err: fmt.Errorf("bad line quantity %q: %w", li.Quantity, err)}
		}
		o.Lines = append(o.Lines, OrderLine{CatalogObjectID: li.CatalogObjectID, Quantity: qty})
	}
	return o, nil
}

func (c *HTTPClient) CreateOrder(ctx context.Context, idempotencyKey, locationID string, lines []LineItem) (Order, error) {
	type wireLine struct {
		CatalogObjectID string `json:"catalog_object_id"`
		Quantity        string `json:"quantity"`
	}
	wl := make([]wireLine, 0, len(lines))
	for _, li := range lines {
		wl = append(wl, wireLine{li.CatalogObjectID, strconv.Itoa(li.Quantity)})
	}
	body := struct {
		IdempotencyKey string `json:"idempotency_key"`
		Order          struct {
			LocationID string     `json:"location_id"`
			LineItems  []wireLine `json:"line_items"`
		} `json:"order"`
	}{IdempotencyKey: idempotencyKey}
	body.Order.LocationID = locationID
	body.Order.LineItems = wl

	var out struct {
		Order wireOrder `json:"order"`
	}
	if err := c.do(ctx, "create order", http.MethodPost, "/v2/orders", body, &out); err != nil {
		return Order{}, err
	}
	return out.Order.toOrder("create order")
}

func (c *HTTPClient) RetrieveOrder(ctx context.Context, orderID string) (Order, error) {
	var out struct {
		Order wireOrder `json:"order"`
	}
	if err := c.do(ctx, "retrieve order", http.MethodGet, "/v2/orders/"+orderID, nil, &out); err != nil {
		return Order{}, err
	}
	return out.Order.toOrder("retrieve order")
}

type wireInvoice struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	PublicURL string `json:"public_url"`
}

func (c *HTTPClient) CreateInvoice(ctx context.Context, idempotencyKey, orderID string, dueDate time.Time) (Invoice, error) {
	body := struct {
		IdempotencyKey string `json:"idempotency_key"`
		Invoice        struct {
			LocationID      string `json:"location_id"`
			OrderID         string `json:"order_id"`
			DeliveryMethod  string `json:"delivery_method"`
			PaymentRequests []struct {
				RequestType string `json:"request_type"`
				DueDate     string `json:"due_date"`
			} `json:"payment_requests"`
		} `json:"invoice"`
	}{IdempotencyKey: idempotencyKey}
	body.Invoice.LocationID = c.locationID
	body.Invoice.OrderID = orderID
	body.Invoice.DeliveryMethod = "EMAIL"
	body.Invoice.PaymentRequests = []struct {
		RequestType string `json:"request_type"`
		DueDate     string `json:"due_date"`
	}{{RequestType: "BALANCE", DueDate: dueDate.UTC().Format("2006-01-02")}}

	var out struct {
		Invoice wireInvoice `json:"invoice"`
	}
	if err := c.do(ctx, "create invoice", http.MethodPost, "/v2/invoices", body, &out); err != nil {
		return Invoice{}, err
	}
	return Invoice{ID: out.Invoice.ID, OrderID: out.Invoice.OrderID, Status: out.Invoice.Status, PublicURL: out.Invoice.PublicURL}, nil
}

func (c *HTTPClient) GetInvoice(ctx context.Context, invoiceID string) (Invoice, error) {
	var out struct {
		Invoice wireInvoice `json:"invoice"`
	}
	if err := c.do(ctx, "get invoice", http.MethodGet, "/v2/invoices/"+invoiceID, nil, &out); err != nil {
		return Invoice{}, err
	}
	return Invoice{ID: out.Invoice.ID, OrderID: out.Invoice.OrderID, Status: out.Invoice.Status, PublicURL: out.Invoice.PublicURL}, nil
}

func (c *HTTPClient) CreateTerminalCheckout(ctx context.Context, idempotencyKey, orderID string, amount Money) (Checkout, error) {
	body := struct {
		IdempotencyKey string `json:"idempotency_key"`
		Checkout       struct {
			AmountMoney Money  `json:"amount_money"`
			OrderID     string `json:"order_id"`
			PaymentType string `json:"payment_type"`
		} `json:"checkout"`
	}{IdempotencyKey: idempotencyKey}
	body.Checkout.AmountMoney = amount
	body.Checkout.OrderID = orderID
	body.Checkout.PaymentType = "CARD_PRESENT"

	var out struct {
		Checkout struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"checkout"`
	}
	if err := c.do(ctx, "create terminal checkout", http.MethodPost, "/v2/terminals/checkouts", body, &out); err != nil {
		return Checkout{}, err
	}
	return Checkout{ID: out.Checkout.ID, Status: out.Checkout.Status}, nil
}

var _ Client = (*HTTPClient)(nil)
