package rpc

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"solation/core/state"
	"solation/core/types"
	"solation/native/bank"
	"solation/native/protocol"
	"solation/native/rfq"
)

func (s *Server) handleMutualUnwind(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.MutualUnwind(callerOf(r), id, req.Reason)
	s.writeResolution(w, r, res, err)
}

func (s *Server) handleForceContinue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req forceContinueRequest
	if !s.decode(w, r, &req) {
		return
	}
	caller := callerOf(r)
	source := caller
	if req.PremiumSource != nil {
		source = *req.PremiumSource
	}
	position, err := s.engine.ForceContinue(caller, id, req.Reason, req.PayPremium, source)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPositionView(position))
}

func (s *Server) handleForceSettleNow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req forceSettleRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.ForceSettleNow(callerOf(r), id, req.SettlementPrice, req.UserBps, req.Reason)
	s.writeResolution(w, r, res, err)
}

func (s *Server) handleProportionalSplit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req splitRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.ProportionalSplit(callerOf(r), id, req.UserBps, req.Reason)
	s.writeResolution(w, r, res, err)
}

func (s *Server) handleEscrowToTreasury(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.EscrowToTreasury(callerOf(r), id, req.Reason)
	s.writeResolution(w, r, res, err)
}

func (s *Server) writeResolution(w http.ResponseWriter, r *http.Request, res *rfq.Resolution, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResolutionView(res))
}

func (s *Server) handleEmergencyShutdown(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.EmergencyShutdown(callerOf(r), req.Reason); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleRegisterMM(w http.ResponseWriter, r *http.Request) {
	var req registerMMRequest
	if !s.decode(w, r, &req) {
		return
	}
	mm, err := s.engine.RegisterMM(callerOf(r), req.SigningKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMarketMakerView(mm))
}

func (s *Server) handleUpdateSigningKey(w http.ResponseWriter, r *http.Request) {
	var req registerMMRequest
	if !s.decode(w, r, &req) {
		return
	}
	mm, err := s.engine.UpdateSigningKey(callerOf(r), req.SigningKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketMakerView(mm))
}

func pathAddress(w http.ResponseWriter, r *http.Request, param string) (types.Address, bool) {
	addr, err := types.ParseAddress(chi.URLParam(r, param))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidRequest", param+": "+err.Error())
		return types.Address{}, false
	}
	return addr, true
}

func (s *Server) handleSetMMActive(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r, "owner")
	if !ok {
		return
	}
	var req mmActiveRequest
	if !s.decode(w, r, &req) {
		return
	}
	mm, err := s.engine.SetMMActive(callerOf(r), owner, req.Active)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketMakerView(mm))
}

func (s *Server) handleGetMarketMaker(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r, "owner")
	if !ok {
		return
	}
	mm, err := s.engine.MarketMaker(owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketMakerView(mm))
}

func (s *Server) handleGetNonceTracker(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r, "owner")
	if !ok {
		return
	}
	tracker, err := s.engine.NonceTracker(owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonceTrackerView{
		MM:        tracker.MM,
		BaseNonce: tracker.BaseNonce,
		Bitmap:    hex.EncodeToString(tracker.Bitmap[:]),
	})
}

type globalView struct {
	Authority      types.Address `json:"authority"`
	Treasury       types.Address `json:"treasury"`
	ProtocolFeeBps uint16        `json:"protocolFeeBps"`
	Paused         bool          `json:"paused"`
}

type globalUpdateRequest struct {
	Authority      *types.Address `json:"authority,omitempty"`
	Treasury       *types.Address `json:"treasury,omitempty"`
	ProtocolFeeBps *uint16        `json:"protocolFeeBps,omitempty"`
	Paused         *bool          `json:"paused,omitempty"`
}

func (s *Server) handleGetGlobal(w http.ResponseWriter, r *http.Request) {
	var global *protocol.GlobalState
	err := s.state.View(func(tx *state.Tx) error {
		var err error
		global, err = protocol.NewStore(tx).Global()
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, globalView(*global))
}

func (s *Server) handleUpdateGlobal(w http.ResponseWriter, r *http.Request) {
	var req globalUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}
	var global *protocol.GlobalState
	err := s.state.Update(func(tx *state.Tx) error {
		var err error
		global, err = protocol.NewStore(tx).UpdateGlobal(callerOf(r), protocol.GlobalUpdate(req))
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("protocol updated", "caller", callerOf(r).String(), "paused", global.Paused)
	writeJSON(w, http.StatusOK, globalView(*global))
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	var assets []*protocol.AssetConfig
	err := s.state.View(func(tx *state.Tx) error {
		var err error
		assets, err = protocol.NewStore(tx).Assets()
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]assetView, 0, len(assets))
	for _, asset := range assets {
		out = append(out, newAssetView(asset))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddAsset(w http.ResponseWriter, r *http.Request) {
	var req assetView
	if !s.decode(w, r, &req) {
		return
	}
	feed, err := hex.DecodeString(strings.TrimPrefix(req.FeedID, "0x"))
	if err != nil || len(feed) != 32 {
		writeJSONError(w, http.StatusBadRequest, "InvalidRequest", "feedId must be 32 hex-encoded bytes")
		return
	}
	cfg := protocol.AssetConfig{
		AssetMint:        req.AssetMint,
		QuoteMint:        req.QuoteMint,
		MinStrikeBps:     req.MinStrikeBps,
		MaxStrikeBps:     req.MaxStrikeBps,
		MinExpirySeconds: req.MinExpirySeconds,
		MaxExpirySeconds: req.MaxExpirySeconds,
		Decimals:         req.Decimals,
	}
	copy(cfg.FeedID[:], feed)
	var added *protocol.AssetConfig
	err = s.state.Update(func(tx *state.Tx) error {
		var err error
		added, err = protocol.NewStore(tx).AddAsset(callerOf(r), cfg)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAssetView(added))
}

func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	mint, ok := pathAddress(w, r, "mint")
	if !ok {
		return
	}
	var req assetUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}
	var updated *protocol.AssetConfig
	err := s.state.Update(func(tx *state.Tx) error {
		var err error
		updated, err = protocol.NewStore(tx).UpdateAsset(callerOf(r), mint, req.update())
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAssetView(updated))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	mint, ok := pathAddress(w, r, "mint")
	if !ok {
		return
	}
	account, ok := pathAddress(w, r, "account")
	if !ok {
		return
	}
	var balance uint64
	err := s.state.View(func(tx *state.Tx) error {
		var err error
		balance, err = bank.NewLedger(tx).Balance(mint, account)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mint":    mint,
		"account": account,
		"balance": balance,
	})
}

func (s *Server) handlePublishPrice(w http.ResponseWriter, r *http.Request) {
	if s.oracle == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "Unavailable", "oracle not configured")
		return
	}
	var req publishPriceRequest
	if !s.decode(w, r, &req) {
		return
	}
	update, err := req.update()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if err := s.oracle.Publish(r.Context(), callerOf(r), update); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"feedId":      hex.EncodeToString(update.FeedID[:]),
		"publishTime": update.PublishTime,
	})
}
