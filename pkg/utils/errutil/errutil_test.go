package errutil_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskmatrix/pkg/utils/errutil"
)

func TestHandle(t *testing.T) {
	ctx := context.Background()

	gt.NoError(t, errutil.Handle(ctx, nil, "nothing"))

	err := goerr.New("boom", goerr.V("key", "value"))
	gt.Error(t, errutil.Handle(ctx, err, "failed")).Is(err)
}

func TestHandleHTTP(t *testing.T) {
	t.Run("writes detail as JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(context.Background(), w, goerr.New("invalid likelihood"), http.StatusUnprocessableEntity, "Likelihood and Impact must be between 1 and 5")

		gt.Value(t, w.Code).Equal(http.StatusUnprocessableEntity)
		gt.Value(t, w.Header().Get("Content-Type")).Equal("application/json")

		var resp errutil.ErrorResponse
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp.Detail).Equal("Likelihood and Impact must be between 1 and 5")
	})

	t.Run("falls back to error message", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(context.Background(), w, goerr.New("database is locked"), http.StatusInternalServerError, "")

		gt.Value(t, w.Code).Equal(http.StatusInternalServerError)
		gt.String(t, w.Body.String()).Contains("database is locked")
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(context.Background(), w, nil, http.StatusInternalServerError, "")
		gt.Value(t, w.Body.Len()).Equal(0)
	})
}
