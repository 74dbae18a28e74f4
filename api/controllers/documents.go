package controllers

import (
	"net/http"

	"github.com/clinicore-health/clinicore-backend/api/responses"
	"github.com/clinicore-health/clinicore-backend/api/validators"
	"github.com/clinicore-health/clinicore-backend/internal/documents"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
	"github.com/google/uuid"
)

type initiateUploadPayload struct {
	OwnerID     uuid.UUID `json:"ownerId"`
	FileName    string    `json:"fileName" validate:"required,max=255"`
	ContentType string    `json:"contentType" validate:"required,max=100"`
	SizeBytes   int64     `json:"sizeBytes" validate:"omitempty,min=1"`
}

func documentScope(r *http.Request) (documents.Scope, error) {
	id, err := actorID(r)
	if err != nil {
		return documents.Scope{}, err
	}
	return documents.Scope{UserID: id, Role: actorRole(r)}, nil
}

// DocumentsInitiateUpload creates the metadata row and returns a signed PUT
// URL. File bytes go straight to object storage.
func DocumentsInitiateUpload(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := documentScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body initiateUploadPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.InitiateUpload(r.Context(), scope, documents.InitiateUploadParams{
			OwnerID:     body.OwnerID,
			FileName:    body.FileName,
			ContentType: body.ContentType,
			SizeBytes:   body.SizeBytes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// DocumentsConfirmUpload marks a pending document available after the bytes
// landed in the bucket.
func DocumentsConfirmUpload(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := documentScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		document, err := svc.ConfirmUpload(r.Context(), scope, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, document)
	}
}

// DocumentsDownloadURL hands out a short-lived signed GET URL.
func DocumentsDownloadURL(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := documentScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		url, err := svc.DownloadURL(r.Context(), scope, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"downloadUrl": url})
	}
}

// DocumentsList returns documents visible to the caller.
func DocumentsList(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := documentScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ownerID, err := queryUUID(r, "ownerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), scope, documents.ListParams{
			OwnerID: ownerID,
			Limit:   queryLimit(r),
			Cursor:  r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// DocumentsDelete tombstones a document and removes the stored object.
func DocumentsDelete(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := documentScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), scope, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "document deleted"})
	}
}
