package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tradingflow/server/internal/domain"
)

type brokerRequest struct {
	Exchange  domain.Exchange `json:"exchange"`
	Label     string          `json:"label"`
	APIKey    string          `json:"apiKey"`
	APISecret string          `json:"apiSecret"`
}

func (s *Server) handleBrokersCreate(w http.ResponseWriter, r *http.Request) {
	var req brokerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	broker, err := s.coordinator.RegisterBroker(ctx, userID(r), req.Exchange, req.Label, req.APIKey, req.APISecret)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, broker)
}

func (s *Server) handleBrokersList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	brokers, err := s.coordinator.ListBrokers(ctx, userID(r))
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	// Ensure JSON is [] not null when empty.
	if brokers == nil {
		brokers = []domain.Broker{}
	}
	writeJSON(w, http.StatusOK, brokers)
}

func (s *Server) handleBrokerGet(w http.ResponseWriter, r *http.Request) {
	brokerID := strings.TrimSpace(pathParam(r, "brokerID"))
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	broker, err := s.coordinator.GetBroker(ctx, brokerID)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, broker)
}

func (s *Server) handleBrokerUpdate(w http.ResponseWriter, r *http.Request) {
	brokerID := strings.TrimSpace(pathParam(r, "brokerID"))
	var req brokerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	if err := s.coordinator.UpdateBroker(ctx, brokerID, req.Exchange, req.Label, req.APIKey, req.APISecret); err != nil {
		writeCoordinatorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBrokerDelete(w http.ResponseWriter, r *http.Request) {
	brokerID := strings.TrimSpace(pathParam(r, "brokerID"))
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.coordinator.DeleteBroker(ctx, brokerID); err != nil {
		writeCoordinatorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
