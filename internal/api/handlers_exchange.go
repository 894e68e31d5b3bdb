package api

import (
	"net/http"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/fx-calc/internal/models"
)

type exchangeRateResponse struct {
	ExchangeRate models.ExchangeRate `json:"exchangeRate"`
	Metadata     models.RateMetadata `json:"metadata"`
}

type usdBRLResponse struct {
	Rate     decimal.Decimal     `json:"rate"`
	Metadata models.RateMetadata `json:"metadata"`
}

type allRatesResponse struct {
	Rates    []models.ExchangeRate `json:"rates"`
	Metadata models.RateMetadata   `json:"metadata"`
}

func (s *Server) handleExchangeRate(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, r, badRequest("from and to query parameters are required"))
		return
	}

	rate, err := s.rates.ExchangeRate(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, exchangeRateResponse{ExchangeRate: rate, Metadata: s.rates.Metadata()})
}

func (s *Server) handleUSDToBRL(w http.ResponseWriter, r *http.Request) {
	rate, err := s.rates.USDToBRLRate(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, usdBRLResponse{Rate: rate, Metadata: s.rates.Metadata()})
}

func (s *Server) handleAllRates(w http.ResponseWriter, r *http.Request) {
	rates, err := s.rates.AllRates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, allRatesResponse{Rates: rates, Metadata: s.rates.Metadata()})
}

func (s *Server) handleRateMetadata(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.rates.Metadata())
}
