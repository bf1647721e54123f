package adminServer

import (
	"context"
	"net/http"

	"github.com/lpstake/lpstake/pkg/gasTopUp"
	"github.com/lpstake/lpstake/pkg/rewards"
	"go.uber.org/zap"
)

type runRewardsRequest struct {
	PeriodType string `json:"periodType"`
}

type gasTopUpRequest struct {
	Amount string `json:"amount"`
}

func (s *AdminServer) RunRewards(w http.ResponseWriter, r *http.Request) {
	if s.rewards == nil {
		respondWithError(w, http.StatusServiceUnavailable, "rewards job is not configured")
		return
	}
	req := &runRewardsRequest{}
	if err := decodeBody(r, req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PeriodType == "" {
		respondWithError(w, http.StatusBadRequest, "periodType is required")
		return
	}
	period, err := rewards.ParsePeriodType(req.PeriodType)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Sugar().Infow("Manual rewards run requested", zap.String("period", string(period)))
	result := s.rewards.RunManual(context.WithoutCancel(r.Context()), period)
	respondWithJSON(w, http.StatusOK, result)
}

func (s *AdminServer) RunGasTopUp(w http.ResponseWriter, r *http.Request) {
	if s.topUp == nil {
		respondWithError(w, http.StatusServiceUnavailable, "gas top-up is not configured")
		return
	}
	req := &gasTopUpRequest{}
	if err := decodeBody(r, req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount := req.Amount
	if amount == "" {
		amount = s.config.TopUpAmount
	}
	if amount == "" {
		respondWithError(w, http.StatusBadRequest, "amount is required")
		return
	}
	if _, err := gasTopUp.ParseAmountToWei(amount); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Sugar().Infow("Manual gas top-up requested", zap.String("amount", amount))
	summary := s.topUp.TopUpAll(context.WithoutCancel(r.Context()), amount)
	respondWithJSON(w, http.StatusOK, summary)
}
