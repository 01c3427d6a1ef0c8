package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

type mockSaleService struct {
	snap *model.SaleSnapshot
	err  error
}

func (m *mockSaleService) GetStatus(ctx context.Context, saleID string) (*model.SaleSnapshot, error) {
	return m.snap, m.err
}

func TestSaleHandler_GetStatus_Found(t *testing.T) {
	app := fiber.New()
	h := NewSaleHandler(&mockSaleService{snap: &model.SaleSnapshot{SaleID: "sale-1", Status: model.SaleStatusActive}})
	app.Get("/flash-sale/status", h.GetStatus)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/flash-sale/status", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestSaleHandler_GetStatus_NoActiveSaleReturnsNullData(t *testing.T) {
	app := fiber.New()
	h := NewSaleHandler(&mockSaleService{err: apperr.ErrSaleNotActive})
	app.Get("/flash-sale/status", h.GetStatus)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/flash-sale/status", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
