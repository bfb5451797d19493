package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/internal/services"
	"github.com/studytrack/notifyd/pkg/response"
)

// PreferencesHandler exposes the notification preferences of the current user.
type PreferencesHandler struct {
	service *services.PreferencesService
}

// NewPreferencesHandler constructs a preferences handler.
func NewPreferencesHandler(service *services.PreferencesService) (*PreferencesHandler, error) {
	if service == nil {
		return nil, errors.New("preferences handler: service is required")
	}
	return &PreferencesHandler{service: service}, nil
}

// Get returns the stored preferences, creating defaults on first access.
func (h *PreferencesHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	prefs, err := h.service.Get(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, prefs)
}

// Update merges a partial update into the stored preferences.
func (h *PreferencesHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var patch notify.PreferencesPatch
	if !bindAndValidate(c, &patch) {
		return
	}

	prefs, err := h.service.Update(requestContext(c), userID, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, prefs)
}
