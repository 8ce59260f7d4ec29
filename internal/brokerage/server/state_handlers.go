package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tradingflow/server/internal/domain"
)

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	brokerID := strings.TrimSpace(pathParam(r, "brokerID"))
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	holdings, err := s.coordinator.Holdings(ctx, brokerID)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	if holdings == nil {
		holdings = []domain.Holding{}
	}
	writeJSON(w, http.StatusOK, holdings)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	brokerID := strings.TrimSpace(pathParam(r, "brokerID"))
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	positions, err := s.coordinator.Positions(ctx, brokerID)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleOpenOrders(w http.ResponseWriter, r *http.Request) {
	brokerID := strings.TrimSpace(pathParam(r, "brokerID"))
	market := domain.Market(strings.TrimSpace(pathParam(r, "market")))
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	orders, err := s.coordinator.OpenOrders(ctx, brokerID, market)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	brokerID := strings.TrimSpace(pathParam(r, "brokerID"))
	days, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("days")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "days query parameter is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	history, histErr := s.coordinator.BalanceHistory(ctx, brokerID, days)
	if histErr != nil {
		writeCoordinatorError(w, histErr)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
