package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tradingflow/server/internal/domain"
)

func (s *Server) handleOrdersList(w http.ResponseWriter, r *http.Request) {
	brokerID := strings.TrimSpace(pathParam(r, "brokerID"))
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	orders, err := s.coordinator.ListOrders(ctx, brokerID)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.OrderRecord{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleOrderListSubmit(w http.ResponseWriter, r *http.Request) {
	brokerID := strings.TrimSpace(pathParam(r, "brokerID"))
	var groups []domain.OrderGroup
	if err := json.NewDecoder(r.Body).Decode(&groups); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	records, err := s.coordinator.SubmitOrderGroups(ctx, brokerID, groups)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, records)
}
