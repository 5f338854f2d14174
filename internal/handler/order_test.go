package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-waitlist/internal/pos"
	"github.com/iliyamo/restaurant-waitlist/internal/pos/posmock"
)

func invoiceRequest(t *testing.T, client pos.Client, id string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)

	h := &OrderHandler{POS: client}
	require.NoError(t, h.GetInvoice(c))
	return rec
}

func TestGetInvoice_WrappedNotFoundMapsTo404(t *testing.T) {
	client := posmock.NewClient(t)
	client.On("GetInvoice", mock.Anything, "INV-404").
		Return(pos.Invoice{}, fmt.Errorf("fetch invoice: %w",
			&pos.Error{StatusCode: http.StatusNotFound, Op: "get invoice", Detail: "no such invoice"}))

	rec := invoiceRequest(t, client, "INV-404")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestGetInvoice_RemoteFailureMapsTo502(t *testing.T) {
	client := posmock.NewClient(t)
	client.On("GetInvoice", mock.Anything, "INV-1").
		Return(pos.Invoice{}, &pos.Error{StatusCode: http.StatusServiceUnavailable, Op: "get invoice", Detail: "unavailable"})

	rec := invoiceRequest(t, client, "INV-1")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
