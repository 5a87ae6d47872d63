package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/localstore"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

func testActor() interfaces.Actor {
	return interfaces.Actor{ID: uuid.New(), Subject: "coach"}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fields.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("%w: %w", fields.ErrRemoteUnavailable, fmt.Errorf("dial")), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: %w", sections.ErrWriteFailed, localstore.ErrQuotaExceeded), http.StatusInsufficientStorage},
		{fmt.Errorf("%w: text: bad", sections.ErrInvalidContent), http.StatusUnprocessableEntity},
		{sections.ErrSectionIDRequired, http.StatusBadRequest},
		{&fields.NotFoundError{Resource: "page_content", Key: "home/k"}, http.StatusNotFound},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if status, _ := mapError(tc.err); status != tc.status {
			t.Fatalf("%v: expected %d got %d", tc.err, tc.status, status)
		}
	}
}
