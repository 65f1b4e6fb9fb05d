package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldbankhq/fieldbank/internal/domain"
)

type StorageClientInterface interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
	HeadObject(ctx context.Context, key string) (*ObjectMetadata, error)
}

type ObjectMetadata struct {
	ContentLength int64
	ContentType   string
	ETag          string
}

type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, ownerID, id string) (*domain.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Document, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// DocumentService manages uploaded source artifacts. Documents are opaque
// blobs with metadata; extraction happens client-side and references the
// document ID as provenance.
type DocumentService struct {
	docRepo       DocumentRepositoryInterface
	storageClient StorageClientInterface
	uuidGen       UUIDGenerator
}

func NewDocumentService(docRepo DocumentRepositoryInterface, storageClient StorageClientInterface) *DocumentService {
	return &DocumentService{
		docRepo:       docRepo,
		storageClient: storageClient,
		uuidGen:       &DefaultUUIDGenerator{},
	}
}

func NewDocumentServiceWithUUIDGen(
	docRepo DocumentRepositoryInterface,
	storageClient StorageClientInterface,
	uuidGen UUIDGenerator,
) *DocumentService {
	return &DocumentService{
		docRepo:       docRepo,
		storageClient: storageClient,
		uuidGen:       uuidGen,
	}
}

type InitUploadInput struct {
	OwnerID     string
	Filename    string
	ContentType string
}

type InitUploadResult struct {
	DocumentID string
	StorageKey string
	UploadURL  string
}

// InitUpload issues a presigned URL the client PUTs the file to directly.
// Nothing is recorded yet; the document exists once the upload completes.
func (s *DocumentService) InitUpload(ctx context.Context, input InitUploadInput) (*InitUploadResult, error) {
	if input.OwnerID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "owner ID is required")
	}
	if input.Filename == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}

	documentID := s.uuidGen.NewString()

	storageKey := buildStorageKey(input.OwnerID, documentID, input.Filename)

	uploadURL, err := s.storageClient.GenerateUploadURL(ctx, storageKey, input.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to generate upload URL: %w", err)
	}

	return &InitUploadResult{
		DocumentID: documentID,
		StorageKey: storageKey,
		UploadURL:  uploadURL,
	}, nil
}

type CompleteUploadInput struct {
	DocumentID  string
	OwnerID     string
	Filename    string
	ContentType string
	StorageKey  string
	SHA256      string
	Description string
}

// CompleteUpload verifies the object landed in storage and records the
// document so entries can reference it as provenance.
func (s *DocumentService) CompleteUpload(ctx context.Context, input CompleteUploadInput) (*domain.Document, error) {
	_, err := s.storageClient.HeadObject(ctx, input.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to verify uploaded file: %w", err)
	}

	doc := domain.NewDocument(
		input.DocumentID,
		input.OwnerID,
		input.Filename,
		input.ContentType,
		input.SHA256,
		input.StorageKey,
		input.Description,
		time.Now().UTC(),
	)

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	return doc, nil
}

func (s *DocumentService) GetDownloadURL(ctx context.Context, ownerID, documentID string) (string, error) {
	doc, err := s.docRepo.GetByID(ctx, ownerID, documentID)
	if err != nil {
		return "", err
	}

	url, err := s.storageClient.GenerateDownloadURL(ctx, doc.StorageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}

	return url, nil
}

func (s *DocumentService) Delete(ctx context.Context, ownerID, documentID string) error {
	doc, err := s.docRepo.GetByID(ctx, ownerID, documentID)
	if err != nil {
		return err
	}

	if err := s.storageClient.DeleteObject(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("failed to delete from storage: %w", err)
	}

	if err := s.docRepo.Delete(ctx, ownerID, documentID); err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}

	return nil
}

func (s *DocumentService) GetByID(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	return s.docRepo.GetByID(ctx, ownerID, documentID)
}

func (s *DocumentService) List(ctx context.Context, ownerID string) ([]*domain.Document, error) {
	if ownerID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "owner ID is required")
	}
	return s.docRepo.ListByOwner(ctx, ownerID)
}

func buildStorageKey(ownerID, documentID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", ownerID, documentID, filename)
}
