package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/fx-calc/internal/calculator"
	"gitlab.com/yelinaung/fx-calc/internal/export"
	"gitlab.com/yelinaung/fx-calc/internal/logger"
	"gitlab.com/yelinaung/fx-calc/internal/models"
)

const maxListLimit = 200

type simpleRequest struct {
	InitialAmount decimal.Decimal `json:"initialAmount"`
	// ExchangeRate falls back to the live USD→BRL rate when omitted.
	ExchangeRate *decimal.Decimal `json:"exchangeRate"`
	Reductions   string           `json:"reductions" validate:"max=500"`
}

type detailedRequest struct {
	Steps        []models.InputStep `json:"steps" validate:"max=100,dive"`
	Save         bool               `json:"save"`
	CurrencyCode string             `json:"currencyCode" validate:"omitempty,len=3,alpha"`
}

type detailedResponse struct {
	models.DetailedResult
	ID *uuid.UUID `json:"id,omitempty"`
}

func (s *Server) handleSimple(w http.ResponseWriter, r *http.Request) {
	var req simpleRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var rate decimal.Decimal
	if req.ExchangeRate != nil {
		rate = *req.ExchangeRate
	} else {
		live, err := s.rates.USDToBRLRate(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		rate = live
	}

	result, err := calculator.ProcessSimple(req.InitialAmount, rate, req.Reductions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	var req detailedRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var user string
	if req.Save {
		var err error
		if user, err = userID(r); err != nil {
			writeError(w, r, err)
			return
		}
		if s.store == nil {
			writeError(w, r, errUnavailable)
			return
		}
	}

	result, err := calculator.ProcessDetailed(req.Steps)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := detailedResponse{DetailedResult: result}
	if req.Save {
		calc := &models.Calculation{
			UserID:        user,
			InitialAmount: initialAmount(req.Steps),
			FinalAmount:   result.FinalResult,
			CurrencyCode:  models.NormalizeCode(req.CurrencyCode),
			Steps:         result.Steps,
		}
		if err := s.store.Create(r.Context(), calc); err != nil {
			writeError(w, r, err)
			return
		}
		log := logger.WithUser(user)
		log.Info().Str("calculation_id", calc.ID.String()).Msg("Calculation saved")
		resp.ID = &calc.ID
	}

	respondJSON(w, http.StatusOK, resp)
}

// initialAmount returns the first initial step's value.
func initialAmount(steps []models.InputStep) decimal.Decimal {
	for _, s := range steps {
		if s.Type == models.StepInitial {
			return s.Value
		}
	}
	return decimal.Zero
}

func (s *Server) handleListCalculations(w http.ResponseWriter, r *http.Request) {
	user, err := s.historyUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			writeError(w, r, badRequest("limit must be between 1 and %d", maxListLimit))
			return
		}
	}

	calcs, err := s.store.ListByUser(r.Context(), user, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if calcs == nil {
		calcs = []models.Calculation{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"calculations": calcs})
}

func (s *Server) handleGetCalculation(w http.ResponseWriter, r *http.Request) {
	calc, err := s.loadCalculation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, calc)
}

func (s *Server) handleDeleteCalculation(w http.ResponseWriter, r *http.Request) {
	user, err := s.historyUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := calculationID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.Delete(r.Context(), user, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportCalculation(w http.ResponseWriter, r *http.Request) {
	calc, err := s.loadCalculation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case "csv":
		body, err = export.CalculationCSV(calc)
		contentType = "text/csv; charset=utf-8"
	case "txt":
		body = export.CalculationText(calc)
		contentType = "text/plain; charset=utf-8"
	case "png":
		body, err = export.BreakdownChart(calc)
		contentType = "image/png"
		if errors.Is(err, export.ErrNothingToChart) {
			respondError(w, http.StatusUnprocessableEntity, "Calculation has nothing to chart")
			return
		}
	default:
		writeError(w, r, badRequest("format must be csv, txt or png"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(calc, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) historyUser(r *http.Request) (string, error) {
	user, err := userID(r)
	if err != nil {
		return "", err
	}
	if s.store == nil {
		return "", errUnavailable
	}
	return user, nil
}

func (s *Server) loadCalculation(r *http.Request) (*models.Calculation, error) {
	user, err := s.historyUser(r)
	if err != nil {
		return nil, err
	}
	id, err := calculationID(r)
	if err != nil {
		return nil, err
	}
	return s.store.GetByID(r.Context(), user, id)
}

func calculationID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, badRequest("invalid calculation id")
	}
	return id, nil
}
