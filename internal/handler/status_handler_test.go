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

type mockStatusService struct {
	state    *model.UserPurchaseState
	job      *model.PurchaseJob
	stateErr error
	jobErr   error
}

func (m *mockStatusService) GetUserStatus(ctx context.Context, userID string) (*model.UserPurchaseState, error) {
	return m.state, m.stateErr
}

func (m *mockStatusService) GetJobStatus(ctx context.Context, jobID string) (*model.PurchaseJob, error) {
	return m.job, m.jobErr
}

func setupStatusTestApp(mockSvc *mockStatusService, authed bool) *fiber.App {
	app := fiber.New()
	if authed {
		app.Use(withUser("user-1"))
	}
	h := NewStatusHandler(mockSvc)
	app.Get("/purchase/status", h.GetUserStatus)
	app.Get("/purchase/job/:jobId", h.GetJobStatus)
	return app
}

func TestGetUserStatus_Found(t *testing.T) {
	app := setupStatusTestApp(&mockStatusService{state: &model.UserPurchaseState{JobID: "job-1", Status: model.JobStatusCompleted}}, true)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/purchase/status", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGetUserStatus_NotFoundReturnsOK(t *testing.T) {
	app := setupStatusTestApp(&mockStatusService{stateErr: apperr.ErrNotFound}, true)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/purchase/status", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGetUserStatus_Unauthenticated(t *testing.T) {
	app := setupStatusTestApp(&mockStatusService{}, false)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/purchase/status", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGetJobStatus_NotFound(t *testing.T) {
	app := setupStatusTestApp(&mockStatusService{jobErr: apperr.ErrNotFound}, true)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/purchase/job/job-1", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
