package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
	"github.com/secmon-lab/riskmatrix/pkg/usecase"
	"github.com/secmon-lab/riskmatrix/pkg/utils/errutil"
	"github.com/secmon-lab/riskmatrix/pkg/utils/safe"
)

// unknownLevelHint is answered for levels outside the four bands
const unknownLevelHint = "Review and assess"

const maxBodyBytes = 64 * 1024

type riskInputRequest struct {
	Asset      string `json:"asset"`
	Threat     string `json:"threat"`
	Likelihood *int   `json:"likelihood"`
	Impact     *int   `json:"impact"`
}

func decodeRiskInput(r *http.Request) (model.RiskInput, error) {
	var req riskInputRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return model.RiskInput{}, goerr.Wrap(model.ErrValidation, "request body must be a JSON object with asset, threat, likelihood and impact")
	}
	if req.Likelihood == nil || req.Impact == nil {
		return model.RiskInput{}, goerr.Wrap(model.ErrValidation, "likelihood and impact are required")
	}
	return model.RiskInput{
		Asset:      req.Asset,
		Threat:     req.Threat,
		Likelihood: *req.Likelihood,
		Impact:     *req.Impact,
	}, nil
}

// inputErrorDetail turns an input error into the message shown to the client
func inputErrorDetail(err error) (string, bool) {
	switch {
	case errors.Is(err, model.ErrInvalidRange):
		return "Likelihood and Impact must be between 1 and 5", true
	case errors.Is(err, model.ErrValidation):
		return err.Error(), true
	default:
		return "", false
	}
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"message": "GRC Risk Assessment API",
		"endpoints": map[string]string{
			"POST /assess-risk":            "Submit a new risk assessment",
			"POST /preview":                "Score a risk without storing it",
			"GET /risks":                   "Retrieve all risks (optional ?level=, ?sort=, ?order=)",
			"GET /risks/{id}":              "Get specific risk by ID",
			"GET /risks/export":            "Download the register as CSV",
			"GET /matrix":                  "5x5 likelihood by impact heatmap",
			"GET /dashboard":               "Statistics, heatmap and register",
			"GET /compliance-hint/{level}": "Mitigation hint for a risk level",
		},
	})
}

func (s *Server) assessRiskHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	input, err := decodeRiskInput(r)
	if err != nil {
		detail, _ := inputErrorDetail(err)
		errutil.HandleHTTP(ctx, w, err, http.StatusUnprocessableEntity, detail)
		return
	}

	risk, err := s.uc.Risk.AssessRisk(ctx, input)
	if err != nil {
		if detail, ok := inputErrorDetail(err); ok {
			errutil.HandleHTTP(ctx, w, err, http.StatusUnprocessableEntity, detail)
			return
		}
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, risk)
}

func (s *Server) previewHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	input, err := decodeRiskInput(r)
	if err != nil {
		detail, _ := inputErrorDetail(err)
		errutil.HandleHTTP(ctx, w, err, http.StatusUnprocessableEntity, detail)
		return
	}

	assessment, err := s.uc.Risk.Preview(input.Likelihood, input.Impact)
	if err != nil {
		detail, _ := inputErrorDetail(err)
		errutil.HandleHTTP(ctx, w, err, http.StatusUnprocessableEntity, detail)
		return
	}

	writeJSON(w, r, http.StatusOK, assessment)
}

// parseView reads ?level=, ?sort= and ?order=. Unknown values are a client error.
func parseView(r *http.Request) (model.RegisterView, string, error) {
	q := r.URL.Query()

	filter, err := model.ParseLevelFilter(q.Get("level"))
	if err != nil {
		levels := make([]string, 0, 4)
		for _, l := range types.AllRiskLevels() {
			levels = append(levels, l.String())
		}
		return model.RegisterView{}, "Invalid level. Must be one of: " + strings.Join(levels, ", "), err
	}

	view := model.RegisterView{Filter: filter}
	if field := q.Get("sort"); field != "" {
		sortField, err := model.ParseSortField(field)
		if err != nil {
			return model.RegisterView{}, fmt.Sprintf("Invalid sort field: %s", field), err
		}
		dir, err := model.ParseSortDirection(q.Get("order"))
		if err != nil {
			return model.RegisterView{}, "Invalid order. Must be one of: asc, desc", err
		}
		view.Sort = model.SortState{Field: sortField, Direction: dir}
	}

	return view, "", nil
}

func (s *Server) listRisksHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, detail, err := parseView(r)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest, detail)
		return
	}

	risks, err := s.uc.Risk.ListRisks(ctx, view)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if risks == nil {
		risks = []*model.Risk{}
	}

	writeJSON(w, r, http.StatusOK, risks)
}

func (s *Server) getRiskHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid risk ID"), http.StatusUnprocessableEntity, "Risk ID must be an integer")
		return
	}

	risk, err := s.uc.Risk.GetRisk(ctx, id)
	if err != nil {
		if errors.Is(err, usecase.ErrRiskNotFound) {
			errutil.HandleHTTP(ctx, w, err, http.StatusNotFound, "Risk not found")
			return
		}
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, risk)
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, detail, err := parseView(r)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest, detail)
		return
	}

	result, err := s.uc.Export.Export(ctx, view)
	if err != nil {
		if errors.Is(err, model.ErrEmptyExport) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveExport(result.Rows)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	w.WriteHeader(http.StatusOK)
	safe.Write(ctx, w, result.Data)
}

type cellResponse struct {
	Likelihood int             `json:"likelihood"`
	Impact     int             `json:"impact"`
	Count      int             `json:"count"`
	Level      types.RiskLevel `json:"level"`
	RiskIDs    []int64         `json:"risk_ids"`
}

type matrixResponse struct {
	Total    int            `json:"total"`
	Cells    []cellResponse `json:"cells"`
	Excluded []int64        `json:"excluded"`
}

// toMatrixResponse flattens the matrix row by row, likelihood 1..5 then impact 1..5
func toMatrixResponse(m *model.Matrix) matrixResponse {
	resp := matrixResponse{
		Total:    m.Total(),
		Cells:    make([]cellResponse, 0, model.MatrixSize*model.MatrixSize),
		Excluded: make([]int64, 0, len(m.Excluded)),
	}
	for l := range model.MatrixSize {
		for i := range model.MatrixSize {
			cell := m.Cells[l][i]
			ids := make([]int64, 0, len(cell.Risks))
			for _, risk := range cell.Risks {
				ids = append(ids, risk.ID)
			}
			resp.Cells = append(resp.Cells, cellResponse{
				Likelihood: cell.Likelihood,
				Impact:     cell.Impact,
				Count:      cell.Count,
				Level:      cell.Level(),
				RiskIDs:    ids,
			})
		}
	}
	for _, risk := range m.Excluded {
		resp.Excluded = append(resp.Excluded, risk.ID)
	}
	return resp
}

// aggregationErrorDetail tells a rejected corrupt risk apart from a storage failure
func aggregationErrorDetail(err error) string {
	if errors.Is(err, model.ErrCorruptRisk) {
		return "Corrupt risk in register: " + err.Error()
	}
	return "Database error: " + err.Error()
}

func (s *Server) matrixHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if snapshot := s.latestSnapshot(); snapshot != nil {
		writeJSON(w, r, http.StatusOK, toMatrixResponse(snapshot.Matrix))
		return
	}

	matrix, err := s.uc.Risk.Matrix(ctx)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError, aggregationErrorDetail(err))
		return
	}

	writeJSON(w, r, http.StatusOK, toMatrixResponse(matrix))
}

type dashboardResponse struct {
	Stats  model.RegisterStats `json:"stats"`
	Matrix matrixResponse      `json:"matrix"`
	Risks  []*model.Risk       `json:"risks"`
}

func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, detail, err := parseView(r)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest, detail)
		return
	}

	var dashboard *usecase.Dashboard
	if snapshot := s.latestSnapshot(); snapshot != nil {
		dashboard = usecase.NewDashboard(snapshot.Risks, snapshot.Matrix, view)
	} else {
		dashboard, err = s.uc.Risk.Dashboard(ctx, view)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError, aggregationErrorDetail(err))
			return
		}
	}

	risks := dashboard.Register
	if risks == nil {
		risks = []*model.Risk{}
	}
	writeJSON(w, r, http.StatusOK, dashboardResponse{
		Stats:  dashboard.Stats,
		Matrix: toMatrixResponse(dashboard.Matrix),
		Risks:  risks,
	})
}

func (s *Server) complianceHintHandler(w http.ResponseWriter, r *http.Request) {
	level := chi.URLParam(r, "level")
	hint := model.MitigationHint(types.RiskLevel(level))
	if hint == "" {
		hint = unknownLevelHint
	}
	writeJSON(w, r, http.StatusOK, map[string]string{
		"level": level,
		"hint":  hint,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError, "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}
