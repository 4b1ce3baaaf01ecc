package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		label  string
		msg    string
	}{
		{"bad request", BadRequestf("Unknown object filter type '%s'", "x"), http.StatusBadRequest, "Bad request", "Unknown object filter type 'x'"},
		{"not found", NotFoundf("Resource %s does not exist", "/x"), http.StatusNotFound, "Not found", "Resource /x does not exist"},
		{"method", MethodNotAllowedf("GET is not allowed on resource /query"), http.StatusMethodNotAllowed, "Method not allowed", "GET is not allowed on resource /query"},
		{"unavailable", Unavailablef("busy"), http.StatusServiceUnavailable, "Service Unavailable", "busy"},
		{"wrapped", fmt.Errorf("parse: %w", BadRequestf("nope")), http.StatusBadRequest, "Bad request", "nope"},
		{"plain", errors.New("disk on fire"), http.StatusInternalServerError, "Internal Server Error", InternalMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, label, msg := Status(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.label, label)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestWrapUnwraps(t *testing.T) {
	err := Wrap(Unavailable, context.DeadlineExceeded, "The query timed out.")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsKind(err, Unavailable))
	assert.False(t, IsKind(err, BadRequest))
}

func TestInternalKindIsNotExposed(t *testing.T) {
	kind, msg := Classify(New(Internal, "secret detail"))
	assert.Equal(t, Internal, kind)
	assert.Equal(t, InternalMessage, msg)
}
