package riskapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	controller "github.com/secmon-lab/riskmatrix/pkg/controller/http"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
	"github.com/secmon-lab/riskmatrix/pkg/repository/memory"
	"github.com/secmon-lab/riskmatrix/pkg/service/riskapi"
	"github.com/secmon-lab/riskmatrix/pkg/usecase"
)

func newClient(t *testing.T) *riskapi.Client {
	t.Helper()
	srv := httptest.NewServer(controller.New(usecase.New(memory.New())))
	t.Cleanup(srv.Close)

	client, err := riskapi.New(srv.URL + "/")
	gt.NoError(t, err).Required()
	return client
}

func TestNew(t *testing.T) {
	_, err := riskapi.New("")
	gt.Value(t, err).NotNil()

	_, err = riskapi.New("ftp://example.com")
	gt.Value(t, err).NotNil()

	_, err = riskapi.New("http://localhost:8000")
	gt.NoError(t, err)
}

func TestClient_AssessAndList(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	created, err := client.AssessRisk(ctx, model.RiskInput{Asset: "DB", Threat: "SQLi", Likelihood: 4, Impact: 5})
	gt.NoError(t, err).Required()
	gt.Value(t, created.ID).Equal(int64(1))
	gt.Value(t, created.Level).Equal(types.RiskLevelCritical)

	_, err = client.AssessRisk(ctx, model.RiskInput{Asset: "Wiki", Threat: "Defacement", Likelihood: 1, Impact: 2})
	gt.NoError(t, err).Required()

	risks, err := client.FetchRisks(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, risks).Length(2)

	lows, err := client.ListRisks(ctx, riskapi.ListOptions{Level: "Low"})
	gt.NoError(t, err).Required()
	gt.Array(t, lows).Length(1)
	gt.Value(t, lows[0].Asset).Equal("Wiki")

	sorted, err := client.ListRisks(ctx, riskapi.ListOptions{Level: "All", Sort: "score", Order: "asc"})
	gt.NoError(t, err).Required()
	gt.Value(t, sorted[0].Score).Equal(2)

	got, err := client.GetRisk(ctx, created.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Threat).Equal("SQLi")
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	t.Run("validation detail", func(t *testing.T) {
		_, err := client.AssessRisk(ctx, model.RiskInput{Asset: "DB", Threat: "SQLi", Likelihood: 9, Impact: 1})
		var apiErr *riskapi.APIError
		gt.Bool(t, errors.As(err, &apiErr)).True()
		gt.Value(t, apiErr.StatusCode).Equal(http.StatusUnprocessableEntity)
		gt.Value(t, apiErr.Detail).Equal("Likelihood and Impact must be between 1 and 5")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := client.GetRisk(ctx, 404)
		var apiErr *riskapi.APIError
		gt.Bool(t, errors.As(err, &apiErr)).True()
		gt.Value(t, apiErr.StatusCode).Equal(http.StatusNotFound)
		gt.Value(t, apiErr.Detail).Equal("Risk not found")
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := client.ListRisks(ctx, riskapi.ListOptions{Level: "Severe"})
		var apiErr *riskapi.APIError
		gt.Bool(t, errors.As(err, &apiErr)).True()
		gt.Value(t, apiErr.StatusCode).Equal(http.StatusBadRequest)
	})
}

func TestClient_Preview(t *testing.T) {
	client := newClient(t)
	got, err := client.Preview(context.Background(), model.RiskInput{Likelihood: 3, Impact: 5})
	gt.NoError(t, err).Required()
	gt.Value(t, got.Score).Equal(15)
	gt.Value(t, got.Level).Equal(types.RiskLevelHigh)

	risks, err := client.FetchRisks(context.Background())
	gt.NoError(t, err).Required()
	gt.Array(t, risks).Length(0)
}

func TestClient_Export(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	_, err := client.Export(ctx, riskapi.ListOptions{})
	gt.Error(t, err).Is(model.ErrEmptyExport)

	_, err = client.AssessRisk(ctx, model.RiskInput{Asset: "DB", Threat: "SQLi", Likelihood: 4, Impact: 5})
	gt.NoError(t, err).Required()
	_, err = client.AssessRisk(ctx, model.RiskInput{Asset: "Web", Threat: "XSS", Likelihood: 2, Impact: 3})
	gt.NoError(t, err).Required()

	result, err := client.Export(ctx, riskapi.ListOptions{})
	gt.NoError(t, err).Required()
	gt.Value(t, result.Rows).Equal(2)
	gt.Bool(t, strings.HasPrefix(result.Filename, "grc-risks-")).True()
	gt.Bool(t, strings.HasPrefix(string(result.Data), "ID,Asset,Threat,Likelihood,Impact,Score,Level,Mitigation Hint\n")).True()
}

func TestClient_RequestID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(riskapi.RequestIDHeader)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client, err := riskapi.New(srv.URL)
	gt.NoError(t, err).Required()
	_, err = client.FetchRisks(context.Background())
	gt.NoError(t, err).Required()
	gt.Value(t, len(got)).Equal(36)
}

func TestClient_PlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := riskapi.New(srv.URL)
	gt.NoError(t, err).Required()
	_, err = client.FetchRisks(context.Background())
	var apiErr *riskapi.APIError
	gt.Bool(t, errors.As(err, &apiErr)).True()
	gt.Value(t, apiErr.StatusCode).Equal(http.StatusBadGateway)
	gt.Value(t, apiErr.Detail).Equal("upstream unavailable")
}

func TestClient_ListRisksDropsNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"asset":"DB","threat":"SQLi","likelihood":1,"impact":1,"score":1,"level":"Low"},null]`))
	}))
	defer srv.Close()

	client, err := riskapi.New(srv.URL)
	gt.NoError(t, err).Required()
	risks, err := client.FetchRisks(context.Background())
	gt.NoError(t, err).Required()
	gt.Array(t, risks).Length(1).Required()
	gt.Value(t, risks[0].ID).Equal(int64(1))
	gt.Value(t, risks[0].Level).Equal(types.RiskLevelLow)
}
