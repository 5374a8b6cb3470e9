package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/josh-kwaku/rentledger/internal/auth"
)

func orgFromContext(r *http.Request) (uuid.UUID, *AppError) {
	orgID, ok := auth.OrganizationIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, ErrMissingToken
	}
	return orgID, nil
}

// idParam parses a UUID path parameter. A malformed id cannot name any row,
// so it is reported as not found.
func idParam(r *http.Request, name string) (uuid.UUID, *AppError) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, ErrResourceNotFound
	}
	return id, nil
}

// decodeBody decodes a JSON body into dst. An empty body leaves dst at its
// zero value.
func decodeBody(r *http.Request, dst any) *AppError {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return ErrInvalidRequest
	}
	return nil
}
