package returns

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/returnhub/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ObjectStorageService defines the interface for object storage operations
// used by evidence photo uploads
type ObjectStorageService interface {
	// GenerateUploadURL generates a presigned URL for uploading a file
	// Returns the upload URL and expiration time
	GenerateUploadURL(ctx context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error)

	// GenerateDownloadURL generates a presigned URL for downloading a file
	// Returns the download URL and expiration time
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// DeleteObject deletes an object from storage
	DeleteObject(ctx context.Context, storageKey string) error

	// ObjectExists checks if an object exists in storage
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}

// Photo formats accepted as return evidence
var allowedEvidenceContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// EvidenceUploadRequest asks for a presigned evidence upload slot
type EvidenceUploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// EvidenceUploadResponse carries the presigned slot back to the client. The
// client uploads directly to storage and submits StorageKey's public URL as
// a photo reference.
type EvidenceUploadResponse struct {
	StorageKey string    `json:"storage_key"`
	UploadURL  string    `json:"upload_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// EvidenceService issues presigned upload slots for damage photos so image
// bytes never pass through the API
type EvidenceService struct {
	storage      ObjectStorageService
	uploadExpiry time.Duration
	logger       *zap.Logger
}

// NewEvidenceService creates a new EvidenceService
func NewEvidenceService(storage ObjectStorageService, logger *zap.Logger) *EvidenceService {
	return &EvidenceService{
		storage:      storage,
		uploadExpiry: 15 * time.Minute,
		logger:       logger,
	}
}

// SetUploadExpiry overrides how long a presigned upload slot stays valid
func (s *EvidenceService) SetUploadExpiry(d time.Duration) {
	if d > 0 {
		s.uploadExpiry = d
	}
}

// CreateUploadSlot generates a presigned upload URL under a tenant-scoped
// storage key
func (s *EvidenceService) CreateUploadSlot(ctx context.Context, tenantID uuid.UUID, req EvidenceUploadRequest) (*EvidenceUploadResponse, error) {
	ext, ok := allowedEvidenceContentTypes[req.ContentType]
	if !ok {
		return nil, shared.NewDomainErrorf("UNSUPPORTED_MEDIA_TYPE",
			"Content type %s is not accepted as evidence", req.ContentType)
	}

	storageKey := fmt.Sprintf("evidence/%s/%s%s", tenantID, uuid.New(), ext)
	uploadURL, expiresAt, err := s.storage.GenerateUploadURL(ctx, storageKey, req.ContentType, s.uploadExpiry)
	if err != nil {
		s.logger.Error("Failed to generate evidence upload URL",
			zap.String("tenant_id", tenantID.String()),
			zap.String("storage_key", storageKey),
			zap.Error(err))
		return nil, err
	}

	return &EvidenceUploadResponse{
		StorageKey: storageKey,
		UploadURL:  uploadURL,
		ExpiresAt:  expiresAt,
	}, nil
}
