// internal/api/client_handler.go
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"valhalla/gym-api/internal/domain"
	"valhalla/gym-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxPatchBodySize bounds the PATCH body; records are small.
const maxPatchBodySize = 1 << 20

// ClientHandler exposes the client-record endpoints.
type ClientHandler struct {
	clientService service.ClientService
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(clientService service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// --- Request/Response Structs ---

type CreateClientRequest struct {
	Name string `json:"name" binding:"required"`
}

// ClientResponse is the wire shape of a client record. Nutrition and
// progress are always present, already decoded from their stored form.
type ClientResponse struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Active         bool                   `json:"active"`
	Routine        string                 `json:"routine"`
	GoalWeight     string                 `json:"goalWeight"`
	AssignedUserID *string                `json:"assignedUserId"`
	Nutrition      domain.NutritionPlan   `json:"nutrition"`
	Progress       []domain.ProgressEntry `json:"progress"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type ArchiveResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

// --- Handler Methods ---

// ListClients godoc
// @Summary List visible client records
// @Description Admins see every record, newest first; members see at most their own assigned record.
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Success 200 {array} ClientResponse
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients [get]
func (h *ClientHandler) ListClients(c *gin.Context) {
	ident, err := identityFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	clients, err := h.clientService.ListVisible(c.Request.Context(), ident)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve clients.")
		return
	}

	c.JSON(http.StatusOK, MapClientsToResponse(clients))
}

// GetClient godoc
// @Summary Fetch one client record
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client ID"
// @Success 200 {object} ClientResponse
// @Failure 400 {object} gin.H "Invalid client ID"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Not found (or outside the caller's scope)"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{id} [get]
func (h *ClientHandler) GetClient(c *gin.Context) {
	ident, clientID, ok := h.identAndClientID(c)
	if !ok {
		return
	}

	client, err := h.clientService.GetVisible(c.Request.Context(), ident, clientID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapClientToResponse(client))
}

// CreateClient godoc
// @Summary Create a client record
// @Description Creates a record with the given display name and neutral defaults.
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param client body CreateClientRequest true "Client name"
// @Success 201 {object} ClientResponse
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden (not an admin)"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients [post]
func (h *ClientHandler) CreateClient(c *gin.Context) {
	ident, err := identityFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	client, err := h.clientService.CreateClient(c.Request.Context(), ident, req.Name)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapClientToResponse(client))
}

// PatchClient godoc
// @Summary Apply a partial update to a client record
// @Description Fields are merged per role: admins may touch everything (including the assignment), members only nutrition and progress. The update is all-or-nothing.
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client ID"
// @Param patch body object true "Partial field set"
// @Success 200 {object} ClientResponse
// @Failure 400 {object} gin.H "Malformed patch or unknown user"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden field for this role"
// @Failure 404 {object} gin.H "Not found"
// @Failure 409 {object} gin.H "Assignment conflict or duplicate date entry"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{id} [patch]
func (h *ClientHandler) PatchClient(c *gin.Context) {
	ident, clientID, ok := h.identAndClientID(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPatchBodySize))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Failed to read request body.")
		return
	}

	patch, err := service.ParseClientPatch(body)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	client, err := h.clientService.UpdateClient(c.Request.Context(), ident, clientID, patch)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapClientToResponse(client))
}

// DeleteClient godoc
// @Summary Delete a client record
// @Description Hard delete; irreversible. The assigned user account survives.
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client ID"
// @Success 200 {object} gin.H "Deleted"
// @Failure 400 {object} gin.H "Invalid client ID"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden (not an admin)"
// @Failure 404 {object} gin.H "Not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{id} [delete]
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	ident, clientID, ok := h.identAndClientID(c)
	if !ok {
		return
	}

	if err := h.clientService.DeleteClient(c.Request.Context(), ident, clientID); err != nil {
		h.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ArchiveClient godoc
// @Summary Archive a snapshot of a client record
// @Description Stores the current record as a JSON object and returns a presigned download URL.
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client ID"
// @Success 200 {object} ArchiveResponse
// @Failure 400 {object} gin.H "Invalid client ID"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden (not an admin)"
// @Failure 404 {object} gin.H "Not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{id}/archive [post]
func (h *ClientHandler) ArchiveClient(c *gin.Context) {
	ident, clientID, ok := h.identAndClientID(c)
	if !ok {
		return
	}

	url, err := h.clientService.ArchiveClient(c.Request.Context(), ident, clientID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ArchiveResponse{DownloadURL: url})
}

// --- Helpers ---

func (h *ClientHandler) identAndClientID(c *gin.Context) (service.Identity, primitive.ObjectID, bool) {
	ident, err := identityFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return service.Identity{}, primitive.NilObjectID, false
	}

	clientID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid client ID format.")
		return service.Identity{}, primitive.NilObjectID, false
	}
	return ident, clientID, true
}

// mapServiceError translates the service error taxonomy to HTTP statuses.
// Anything unrecognized is an internal error: logged server-side by the Gin
// middleware, reported without detail.
func (h *ClientHandler) mapServiceError(c *gin.Context, err error) {
	var conflict *service.AssignmentConflictError
	var validation *service.ValidationError

	switch {
	case errors.Is(err, service.ErrClientNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrAdminOnly):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrUnknownUser),
		errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrWeightOutOfRange):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateDateEntry):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrOutsideAllowedWindow):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.As(err, &conflict):
		abortWithError(c, http.StatusConflict, conflict.Error())
	case errors.As(err, &validation):
		abortWithError(c, http.StatusBadRequest, validation.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred.")
	}
}

// MapClientToResponse converts a domain Client to its wire shape.
func MapClientToResponse(client *domain.Client) ClientResponse {
	if client == nil {
		return ClientResponse{}
	}
	resp := ClientResponse{
		ID:             client.ID.Hex(),
		Name:           client.Name,
		Active:         client.Active,
		Routine:        client.Routine,
		GoalWeight:     client.GoalWeight,
		AssignedUserID: client.AssignedUserID,
		Nutrition:      client.Nutrition,
		Progress:       client.Progress,
		CreatedAt:      client.CreatedAt,
		UpdatedAt:      client.UpdatedAt,
	}
	if resp.Nutrition.Adherence == nil {
		resp.Nutrition.Adherence = []domain.AdherenceEntry{}
	}
	if resp.Progress == nil {
		resp.Progress = []domain.ProgressEntry{}
	}
	return resp
}

// MapClientsToResponse converts a slice of clients to wire shapes.
func MapClientsToResponse(clients []domain.Client) []ClientResponse {
	responses := make([]ClientResponse, len(clients))
	for i := range clients {
		responses[i] = MapClientToResponse(&clients[i])
	}
	return responses
}
