package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"opengate/api/internal/service"
)

func TestTransitionErrorStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &AccessHandler{}

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"already inside", service.ErrAlreadyInside, http.StatusConflict},
		{"not inside", service.ErrNotInside, http.StatusConflict},
		{"exit before entry", service.ErrInvalidTimeOrder, http.StatusUnprocessableEntity},
		{"unknown person", service.ErrUnknownPerson, http.StatusNotFound},
		{"anything else", errors.New("boom"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			h.transitionError(c, tc.err)
			assert.Equal(t, tc.want, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}
