package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/peerlink-backend/api/middleware"
	"github.com/angelmondragon/peerlink-backend/api/responses"
	"github.com/angelmondragon/peerlink-backend/api/validators"
	"github.com/angelmondragon/peerlink-backend/internal/invitations"
	"github.com/angelmondragon/peerlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/peerlink-backend/pkg/errors"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/angelmondragon/peerlink-backend/pkg/pagination"
)

// SendInvitationRequest is the body of POST /api/v1/invitations. Without an id
// it creates an invitation for receiver_id; with one it moves that invitation
// to status.
type SendInvitationRequest struct {
	ID         *uuid.UUID `json:"id"`
	ReceiverID *uuid.UUID `json:"receiver_id" validate:"required_without=ID"`
	Status     string     `json:"status" validate:"required_with=ID,max=32"`
}

// SendInvitation handles the single create-or-update mutation.
func SendInvitation(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitations service unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id missing"))
			return
		}

		var body SendInvitationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := invitations.SendInput{ID: body.ID, ReceiverID: body.ReceiverID}
		if raw := validators.SanitizeString(body.Status, 32); raw != "" {
			status, err := enums.ParseInvitationStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
					WithDetails(map[string]any{"field": "status"}))
				return
			}
			input.Status = status
		}

		result, err := svc.Send(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if body.ID == nil {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// GetInvitation returns one invitation the caller participates in.
func GetInvitation(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitations service unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id missing"))
			return
		}
		invitationID, err := uuid.Parse(chi.URLParam(r, "invitationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid invitation id"))
			return
		}

		result, err := svc.Get(r.Context(), userID, invitationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ListInvitations pages through the caller's invitations, newest first.
func ListInvitations(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitations service unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := invitations.ListParams{
			ActorID: userID,
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseInvitationStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
