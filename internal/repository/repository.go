package repository

import (
	"context" // Standard for request-scoped deadlines, cancellation signals, etc.

	"valhalla/gym-api/internal/domain" // Import our defined domain models

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer (optional but good practice)
var (
	ErrNotFound        = RepositoryError("not found")
	ErrDuplicateKey    = RepositoryError("duplicate key")
	ErrAssignmentTaken = RepositoryError("assigned user already taken")
	ErrUpdateFailed    = RepositoryError("update failed")
	ErrDeleteFailed    = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user account data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	// UpdateCredentials replaces the password hash and role of an existing
	// user. Used by the startup admin bootstrap.
	UpdateCredentials(ctx context.Context, id, passwordHash string, role domain.Role) error
}

// ClientRepository defines the interface for interacting with client records.
// Update writes the whole record; the unique sparse index on assignedUserId
// is the storage-level guard that closes the assignment race, surfaced as
// ErrAssignmentTaken.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Client, error)
	List(ctx context.Context) ([]domain.Client, error) // newest first
	FindByAssignedUser(ctx context.Context, userID string) (*domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}
