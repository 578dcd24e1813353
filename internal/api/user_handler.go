package api

import (
	"errors"
	"fmt"
	"net/http"

	"valhalla/gym-api/internal/domain"
	"valhalla/gym-api/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler exposes the admin-only account management endpoints.
type UserHandler struct {
	authService service.AuthService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(authService service.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

// --- Request/Response Structs ---

type CreateUserRequest struct {
	Username string      `json:"username" binding:"required"`
	Password string      `json:"password" binding:"required,min=6"`
	Role     domain.Role `json:"role" binding:"omitempty,oneof=admin member"`
}

// --- Handler Methods ---

// ListUsers godoc
// @Summary List all user accounts
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UserResponse
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden (not an admin)"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.authService.ListUsers(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve users.")
		return
	}
	if users == nil {
		c.JSON(http.StatusOK, []UserResponse{}) // Return empty JSON array, not null
		return
	}
	c.JSON(http.StatusOK, MapUsersToResponse(users))
}

// CreateUser godoc
// @Summary Create a new user account
// @Description Creates a login-capable account with a unique username.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param user body CreateUserRequest true "Account details"
// @Success 201 {object} UserResponse "User created successfully"
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden (not an admin)"
// @Failure 409 {object} gin.H "Conflict (username already exists)"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	user, err := h.authService.CreateUser(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			abortWithError(c, http.StatusConflict, err.Error())
		} else if errors.Is(err, service.ErrInvalidRole) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else if errors.Is(err, service.ErrHashingFailed) {
			abortWithError(c, http.StatusInternalServerError, "Could not process account creation")
		} else {
			abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred creating the account")
		}
		return
	}

	c.JSON(http.StatusCreated, MapUserToResponse(user))
}
