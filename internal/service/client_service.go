package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"valhalla/gym-api/internal/domain"
	"valhalla/gym-api/internal/repository"
	"valhalla/gym-api/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrClientNotFound = errors.New("client not found")
	ErrUnknownUser    = errors.New("assigned user does not exist")
	ErrNameRequired   = errors.New("client name is required")
	ErrAdminOnly      = errors.New("only an admin may perform this operation")
	ErrSnapshotFailed = errors.New("failed to archive client snapshot")
)

// AssignmentConflictError reports that the target user is already assigned
// to a different client. It carries that client's name for user-facing
// messaging.
type AssignmentConflictError struct {
	ClientName string
}

func (e *AssignmentConflictError) Error() string {
	return fmt.Sprintf("user is already assigned to client: %s", e.ClientName)
}

// Identity is the authenticated caller, as produced by the auth layer.
// The core only ever consumes the id and role.
type Identity struct {
	ID   string
	Role domain.Role
}

// --- Service Interface ---
type ClientService interface {
	// ListVisible returns the clients the caller may see: every record for an
	// admin (newest first), the zero-or-one assigned record for a member.
	ListVisible(ctx context.Context, ident Identity) ([]domain.Client, error)
	GetVisible(ctx context.Context, ident Identity, clientID primitive.ObjectID) (*domain.Client, error)
	CreateClient(ctx context.Context, ident Identity, name string) (*domain.Client, error)
	UpdateClient(ctx context.Context, ident Identity, clientID primitive.ObjectID, patch *ClientPatch) (*domain.Client, error)
	// AssignUser routes an assignment change through the same pipeline as
	// UpdateClient. An empty userID clears the assignment.
	AssignUser(ctx context.Context, ident Identity, clientID primitive.ObjectID, userID string) (*domain.Client, error)
	DeleteClient(ctx context.Context, ident Identity, clientID primitive.ObjectID) error
	// ArchiveClient uploads a JSON snapshot of the record to object storage
	// and returns a presigned download URL for it.
	ArchiveClient(ctx context.Context, ident Identity, clientID primitive.ObjectID) (string, error)
}

// --- Service Implementation ---

// clientService implements the ClientService interface.
type clientService struct {
	clientRepo repository.ClientRepository
	userRepo   repository.UserRepository
	objects    storage.ObjectStorage
	policy     ProgressPolicy
	now        func() time.Time
}

// NewClientService creates a new instance of clientService.
func NewClientService(
	clientRepo repository.ClientRepository,
	userRepo repository.UserRepository,
	objects storage.ObjectStorage,
	policy ProgressPolicy,
) ClientService {
	return &clientService{
		clientRepo: clientRepo,
		userRepo:   userRepo,
		objects:    objects,
		policy:     policy,
		now:        time.Now,
	}
}

// ListVisible computes visibility per request from the caller's role and id.
// The store holds every record; this is a read-time filter, not a
// storage-time partition.
func (s *clientService) ListVisible(ctx context.Context, ident Identity) ([]domain.Client, error) {
	if ident.Role == domain.RoleAdmin {
		return s.clientRepo.List(ctx)
	}

	client, err := s.clientRepo.FindByAssignedUser(ctx, ident.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Having no assigned record yet is a normal outcome, not an error.
			return []domain.Client{}, nil
		}
		return nil, err
	}
	return []domain.Client{*client}, nil
}

// GetVisible fetches a single client subject to the same visibility rule.
func (s *clientService) GetVisible(ctx context.Context, ident Identity, clientID primitive.ObjectID) (*domain.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if ident.Role != domain.RoleAdmin && !assignedTo(client, ident.ID) {
		// A record outside the member's scope is indistinguishable from a
		// missing one.
		return nil, ErrClientNotFound
	}
	return client, nil
}

// CreateClient creates a new client record with the given display name and
// neutral defaults for everything else.
func (s *clientService) CreateClient(ctx context.Context, ident Identity, name string) (*domain.Client, error) {
	if ident.Role != domain.RoleAdmin {
		return nil, ErrAdminOnly
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	client := &domain.Client{
		Name:      name,
		Active:    true,
		Nutrition: domain.EmptyNutrition(),
		Progress:  []domain.ProgressEntry{},
	}

	id, err := s.clientRepo.Create(ctx, client)
	if err != nil {
		return nil, err
	}
	client.ID = id
	return client, nil
}

// UpdateClient applies a partial update. Pipeline: visibility check, field
// authorization, assignment validation, patch merge, single store write.
// Any failure along the way leaves the stored record untouched.
func (s *clientService) UpdateClient(ctx context.Context, ident Identity, clientID primitive.ObjectID, patch *ClientPatch) (*domain.Client, error) {
	// 1. Fetch the current record, scoped to the caller.
	current, err := s.GetVisible(ctx, ident, clientID)
	if err != nil {
		return nil, err
	}

	// 2. Field-level authorization: all-or-nothing per role whitelist.
	if err := authorizeFields(ident.Role, patch.Fields()); err != nil {
		return nil, err
	}

	// 3. Assignment validation (admin only; the policy above guarantees a
	// member never reaches this branch).
	if patch.HasAssignedUser && patch.AssignedUserID != nil {
		if err := s.checkAssignable(ctx, clientID, *patch.AssignedUserID); err != nil {
			return nil, err
		}
	}

	// 4. Merge. All sub-document validation happens here, before any write.
	next, err := applyPatch(*current, patch, ident.Role, s.now(), s.policy)
	if err != nil {
		return nil, err
	}
	if patch.HasAssignedUser {
		next.AssignedUserID = patch.AssignedUserID
	}

	// 5. Single write. The unique index on assignedUserId backs up the
	// check in step 3: if another request won the race between check and
	// write, the store rejects this one and we report the same conflict.
	if err := s.clientRepo.Update(ctx, &next); err != nil {
		if errors.Is(err, repository.ErrAssignmentTaken) && patch.AssignedUserID != nil {
			return nil, s.conflictFor(ctx, *patch.AssignedUserID)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &next, nil
}

// AssignUser is the public face of the assignment manager: every assignment
// change flows through the update pipeline so the uniqueness check and the
// write stay in one place. Clearing an already-unassigned client is a no-op
// that still succeeds.
func (s *clientService) AssignUser(ctx context.Context, ident Identity, clientID primitive.ObjectID, userID string) (*domain.Client, error) {
	patch := &ClientPatch{
		HasAssignedUser: true,
		fields:          []string{FieldAssignedUser},
	}
	if trimmed := strings.TrimSpace(userID); trimmed != "" {
		patch.AssignedUserID = &trimmed
	}
	return s.UpdateClient(ctx, ident, clientID, patch)
}

// checkAssignable verifies the target user exists and is not already
// assigned to another client.
func (s *clientService) checkAssignable(ctx context.Context, clientID primitive.ObjectID, userID string) error {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownUser
		}
		return err
	}

	holder, err := s.clientRepo.FindByAssignedUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil // User is free.
		}
		return err
	}
	if holder.ID != clientID {
		return &AssignmentConflictError{ClientName: holder.Name}
	}
	return nil // Re-assigning to the same client is a no-op.
}

// conflictFor builds the conflict error for the race path, naming the
// client that holds the user now.
func (s *clientService) conflictFor(ctx context.Context, userID string) error {
	holder, err := s.clientRepo.FindByAssignedUser(ctx, userID)
	if err != nil {
		return &AssignmentConflictError{ClientName: "another client"}
	}
	return &AssignmentConflictError{ClientName: holder.Name}
}

// DeleteClient removes a client record for good. The assigned user, if any,
// is left untouched: the assignment is a non-owning link.
func (s *clientService) DeleteClient(ctx context.Context, ident Identity, clientID primitive.ObjectID) error {
	if ident.Role != domain.RoleAdmin {
		return ErrAdminOnly
	}

	if err := s.clientRepo.Delete(ctx, clientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrClientNotFound
		}
		return err
	}

	// Best effort: drop any archived snapshot alongside the record. The
	// record itself is gone; a stale snapshot is acceptable.
	if s.objects != nil {
		_ = s.objects.DeleteObject(ctx, snapshotKey(clientID))
	}
	return nil
}

// ArchiveClient serializes the full record and stores it as a JSON object,
// returning a presigned URL to download the snapshot.
func (s *clientService) ArchiveClient(ctx context.Context, ident Identity, clientID primitive.ObjectID) (string, error) {
	if ident.Role != domain.RoleAdmin {
		return "", ErrAdminOnly
	}

	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrClientNotFound
		}
		return "", err
	}

	snapshot, err := json.MarshalIndent(client, "", "  ")
	if err != nil {
		return "", ErrSnapshotFailed
	}

	key := snapshotKey(clientID)
	if err := s.objects.Upload(ctx, key, snapshot, "application/json"); err != nil {
		return "", ErrSnapshotFailed
	}

	url, err := s.objects.GeneratePresignedDownloadURL(ctx, key, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return "", ErrSnapshotFailed
	}
	return url, nil
}

func assignedTo(client *domain.Client, userID string) bool {
	return client.AssignedUserID != nil && *client.AssignedUserID == userID
}

func snapshotKey(clientID primitive.ObjectID) string {
	return "snapshots/" + clientID.Hex() + ".json"
}
