package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casafacil/portalsync/internal/api/handler"
	"github.com/casafacil/portalsync/internal/engine"
	"github.com/casafacil/portalsync/internal/store"
)

type stubEnqueuer struct {
	result *engine.EnqueueResult
	err    error

	gotPropertyID uuid.UUID
	gotProviders  []string
	gotAction     string
}

func (s *stubEnqueuer) Enqueue(_ context.Context, _, propertyID uuid.UUID, providers []string, action string) (*engine.EnqueueResult, error) {
	s.gotPropertyID = propertyID
	s.gotProviders = providers
	s.gotAction = action
	return s.result, s.err
}

func TestSyncHandler_Accepted(t *testing.T) {
	svc := &stubEnqueuer{result: &engine.EnqueueResult{QueuedJobs: 2}}
	h := handler.NewSyncHandler(svc)

	propertyID := uuid.New()
	rec := serve(t, http.MethodPost, "/sync", "/sync", map[string]any{
		"property_id": propertyID.String(),
		"providers":   []string{"imovirtual", "idealista"},
		"action":      "publish",
	}, uuid.New(), h)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var got engine.EnqueueResult
	decodeData(t, rec, &got)
	assert.Equal(t, 2, got.QueuedJobs)

	assert.Equal(t, propertyID, svc.gotPropertyID)
	assert.Equal(t, []string{"imovirtual", "idealista"}, svc.gotProviders)
	assert.Equal(t, "publish", svc.gotAction)
}

func TestSyncHandler_PartialFailureStillAccepted(t *testing.T) {
	svc := &stubEnqueuer{result: &engine.EnqueueResult{
		QueuedJobs: 1,
		Errors:     map[string]string{"zillow": "unknown provider"},
	}}
	h := handler.NewSyncHandler(svc)

	rec := serve(t, http.MethodPost, "/sync", "/sync", map[string]any{
		"property_id": uuid.NewString(),
		"providers":   []string{"imovirtual", "zillow"},
		"action":      "publish",
	}, uuid.New(), h)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var got engine.EnqueueResult
	decodeData(t, rec, &got)
	assert.Equal(t, 1, got.QueuedJobs)
	assert.Contains(t, got.Errors, "zillow")
}

func TestSyncHandler_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"invalid property id", map[string]any{
			"property_id": "not-a-uuid", "providers": []string{"imovirtual"}, "action": "publish"}},
		{"empty providers", map[string]any{
			"property_id": uuid.NewString(), "providers": []string{}, "action": "publish"}},
		{"unknown action", map[string]any{
			"property_id": uuid.NewString(), "providers": []string{"imovirtual"}, "action": "promote"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubEnqueuer{}
			rec := serve(t, http.MethodPost, "/sync", "/sync", tt.body, uuid.New(),
				handler.NewSyncHandler(svc))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec))
			assert.Empty(t, svc.gotAction, "service should not be called")
		})
	}
}

func TestSyncHandler_PropertyNotFound(t *testing.T) {
	svc := &stubEnqueuer{err: store.ErrNotFound}
	rec := serve(t, http.MethodPost, "/sync", "/sync", map[string]any{
		"property_id": uuid.NewString(),
		"providers":   []string{"imovirtual"},
		"action":      "publish",
	}, uuid.New(), handler.NewSyncHandler(svc))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PROPERTY_NOT_FOUND", errorCode(t, rec))
}

func TestSyncHandler_InternalError(t *testing.T) {
	svc := &stubEnqueuer{err: assert.AnError}
	rec := serve(t, http.MethodPost, "/sync", "/sync", map[string]any{
		"property_id": uuid.NewString(),
		"providers":   []string{"imovirtual"},
		"action":      "publish",
	}, uuid.New(), handler.NewSyncHandler(svc))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}
