package documents

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/clinicore-health/clinicore-backend/internal/notifications"
	"github.com/clinicore-health/clinicore-backend/pkg/config"
	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	"github.com/clinicore-health/clinicore-backend/pkg/enums"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
	"github.com/clinicore-health/clinicore-backend/pkg/pagination"
	"github.com/clinicore-health/clinicore-backend/pkg/rbac"
	"github.com/clinicore-health/clinicore-backend/pkg/storage/gcs"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scope identifies the actor a query runs as.
type Scope struct {
	UserID uuid.UUID
	Role   rbac.Role
}

func (s Scope) canView(document *models.Document) bool {
	switch s.Role {
	case rbac.RoleAdmin:
		return true
	default:
		return document.OwnerID == s.UserID || document.UploadedBy == s.UserID
	}
}

// Service drives the presigned upload/download lifecycle for patient files.
// Bytes never pass through the API; clients talk to object storage directly.
type Service interface {
	InitiateUpload(ctx context.Context, scope Scope, params InitiateUploadParams) (*InitiateUploadResult, error)
	ConfirmUpload(ctx context.Context, scope Scope, id uuid.UUID) (*models.Document, error)
	DownloadURL(ctx context.Context, scope Scope, id uuid.UUID) (string, error)
	List(ctx context.Context, scope Scope, params ListParams) (*ListResult, error)
	Delete(ctx context.Context, scope Scope, id uuid.UUID) error
}

type objectStore interface {
	SignedUploadURL(ctx context.Context, objectKey, contentType string) (string, error)
	SignedDownloadURL(ctx context.Context, objectKey string) (string, error)
	Exists(ctx context.Context, objectKey string) (bool, error)
	Delete(ctx context.Context, objectKey string) error
}

type service struct {
	repo     Repository
	store    objectStore
	notifier notifications.Service
	cfg      config.DocumentsConfig
	logg     *logger.Logger
}

var _ objectStore = (*gcs.Client)(nil)

// NewService wires document dependencies.
func NewService(repo Repository, store objectStore, notifier notifications.Service, cfg config.DocumentsConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "documents repository required")
	}
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "object store required")
	}
	return &service{repo: repo, store: store, notifier: notifier, cfg: cfg, logg: logg}, nil
}

// InitiateUploadParams describes the file about to be uploaded.
type InitiateUploadParams struct {
	OwnerID     uuid.UUID
	FileName    string
	ContentType string
	SizeBytes   int64
}

// InitiateUploadResult hands the client the metadata row and the URL to PUT
// the bytes to.
type InitiateUploadResult struct {
	Document  *models.Document `json:"document"`
	UploadURL string           `json:"uploadUrl"`
}

// ListParams configures document listing.
type ListParams struct {
	OwnerID *uuid.UUID
	Limit   int
	Cursor  string
}

// ListResult wraps returned documents and the cursor for the next page.
type ListResult struct {
	Items  []models.Document `json:"items"`
	Cursor string            `json:"cursor"`
}

func (s *service) InitiateUpload(ctx context.Context, scope Scope, params InitiateUploadParams) (*InitiateUploadResult, error) {
	ownerID := params.OwnerID
	// Patients upload into their own folder only.
	if scope.Role == rbac.RolePatient || ownerID == uuid.Nil {
		ownerID = scope.UserID
	}

	fileName := path.Base(strings.TrimSpace(params.FileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file name required")
	}
	if strings.TrimSpace(params.ContentType) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content type required")
	}
	if maxBytes := int64(s.cfg.MaxUploadMB) << 20; maxBytes > 0 && params.SizeBytes > maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds %d MB limit", s.cfg.MaxUploadMB))
	}

	objectKey := fmt.Sprintf("documents/%s/%s-%s", ownerID, uuid.NewString(), fileName)
	document := &models.Document{
		OwnerID:     ownerID,
		UploadedBy:  scope.UserID,
		FileName:    fileName,
		ContentType: params.ContentType,
		SizeBytes:   params.SizeBytes,
		ObjectKey:   objectKey,
		Status:      enums.DocumentStatusPending,
	}
	if err := s.repo.Create(ctx, document); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create document")
	}

	uploadURL, err := s.store.SignedUploadURL(ctx, objectKey, params.ContentType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign upload url")
	}

	return &InitiateUploadResult{Document: document, UploadURL: uploadURL}, nil
}

// ConfirmUpload flips a pending document to available once the object is
// actually in the bucket.
func (s *service) ConfirmUpload(ctx context.Context, scope Scope, id uuid.UUID) (*models.Document, error) {
	document, err := s.getScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if document.Status == enums.DocumentStatusAvailable {
		return document, nil
	}
	if document.Status != enums.DocumentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "document is not pending")
	}

	exists, err := s.store.Exists(ctx, document.ObjectKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check object")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "upload not completed")
	}

	applied, err := s.repo.SetStatus(ctx, id, enums.DocumentStatusPending, enums.DocumentStatusAvailable)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark available")
	}
	if applied {
		document.Status = enums.DocumentStatusAvailable
	}

	if s.notifier != nil && document.OwnerID != document.UploadedBy {
		link := "/documents/" + document.ID.String()
		err := s.notifier.Notify(ctx, notifications.NotifyParams{
			UserID:  document.OwnerID,
			Type:    enums.NotificationTypeDocument,
			Title:   "New document",
			Message: document.FileName,
			Link:    &link,
		})
		if err != nil && s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"document_id": document.ID.String()})
			s.logg.Warn(logCtx, "documents.notify_failed")
		}
	}
	return document, nil
}

func (s *service) DownloadURL(ctx context.Context, scope Scope, id uuid.UUID) (string, error) {
	document, err := s.getScoped(ctx, scope, id)
	if err != nil {
		return "", err
	}
	if document.Status != enums.DocumentStatusAvailable {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "document is not available")
	}

	url, err := s.store.SignedDownloadURL(ctx, document.ObjectKey)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign download url")
	}
	return url, nil
}

func (s *service) List(ctx context.Context, scope Scope, params ListParams) (*ListResult, error) {
	query := listDocumentsParams{Limit: params.Limit}
	switch scope.Role {
	case rbac.RoleAdmin:
		query.OwnerID = params.OwnerID
	default:
		id := scope.UserID
		query.OwnerID = &id
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list documents")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// Delete tombstones the metadata row and removes the stored object. The row
// is marked first so a storage failure cannot resurrect the document.
func (s *service) Delete(ctx context.Context, scope Scope, id uuid.UUID) error {
	document, err := s.getScoped(ctx, scope, id)
	if err != nil {
		return err
	}
	if document.Status == enums.DocumentStatusDeleted {
		return nil
	}

	applied, err := s.repo.SetStatus(ctx, id, document.Status, enums.DocumentStatusDeleted)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark deleted")
	}
	if !applied {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "document changed concurrently")
	}

	if err := s.store.Delete(ctx, document.ObjectKey); err != nil {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"document_id": id.String()})
			s.logg.Warn(logCtx, "documents.object_delete_failed")
		}
	}
	return nil
}

func (s *service) getScoped(ctx context.Context, scope Scope, id uuid.UUID) (*models.Document, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document id required")
	}
	document, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get document")
	}
	if !scope.canView(document) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
	}
	return document, nil
}
