// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package dberr_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arboria/treeatlas/internal/platform/apperr"
	"github.com/arboria/treeatlas/internal/platform/dberr"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"no_rows", pgx.ErrNoRows, "NOT_FOUND", http.StatusNotFound},
		{"wrapped_no_rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), "NOT_FOUND", http.StatusNotFound},
		{"unique_violation", &pgconn.PgError{Code: "23505"}, "CONFLICT", http.StatusConflict},
		{"foreign_key_violation", &pgconn.PgError{Code: "23503"}, "CONFLICT", http.StatusConflict},
		{"other_pg_error", &pgconn.PgError{Code: "57P01"}, "INTERNAL_ERROR", http.StatusInternalServerError},
		{"plain_error", fmt.Errorf("connect: connection refused"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := dberr.Wrap(tt.err, "test_action")
			require.Error(t, wrapped)

			appError := apperr.As(wrapped)
			require.NotNil(t, appError)
			assert.Equal(t, tt.wantCode, appError.Code)
			assert.Equal(t, tt.wantStatus, appError.HTTPStatus)
		})
	}
}

func TestWrap_NilPassesThrough(t *testing.T) {
	assert.NoError(t, dberr.Wrap(nil, "test_action"))
}
