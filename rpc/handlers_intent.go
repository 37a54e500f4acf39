package rpc

import (
	"net/http"

	"solation/core/types"
	"solation/crypto"
	"solation/native/rfq"
)

func callerOf(r *http.Request) types.Address {
	caller, _ := CallerFromContext(r.Context())
	return caller
}

// handleSubmitIntent verifies every signature instruction of the submitted
// batch before handing it to the engine, mirroring host-side verification.
func (s *Server) handleSubmitIntent(w http.ResponseWriter, r *http.Request) {
	var req SubmitIntentRequest
	if !s.decode(w, r, &req) {
		return
	}
	params, err := req.params()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if err := crypto.VerifyBatch(req.Batch); err != nil {
		s.writeError(w, r, rfq.ErrInvalidSignature)
		return
	}
	intent, err := s.engine.SubmitIntent(callerOf(r), params, req.Batch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newIntentView(intent))
}

func (s *Server) handleOpenIntents(w http.ResponseWriter, r *http.Request) {
	intents, err := s.engine.OpenIntents()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]intentView, 0, len(intents))
	for _, intent := range intents {
		out = append(out, newIntentView(intent))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	intent, err := s.engine.Intent(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newIntentView(intent))
}

func (s *Server) handleFillIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	position, err := s.engine.FillIntent(callerOf(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPositionView(position))
}

func (s *Server) handleCancelIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	intent, err := s.engine.CancelIntent(callerOf(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newIntentView(intent))
}

func (s *Server) handleExpireIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	intent, err := s.engine.ExpireIntent(callerOf(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newIntentView(intent))
}

func (s *Server) handleFlagDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !s.decode(w, r, &req) {
		return
	}
	intent, err := s.engine.FlagDispute(callerOf(r), id, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newIntentView(intent))
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	position, err := s.engine.Position(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPositionView(position))
}

func (s *Server) handleSettlePosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	settlement, err := s.engine.SettlePosition(r.Context(), callerOf(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settlementView{
		PositionID:  settlement.PositionID,
		Price:       settlement.Price,
		PublishTime: settlement.PublishTime,
		UserAmount:  settlement.UserAmount,
		MMAmount:    settlement.MMAmount,
		Status:      settlement.Status.String(),
	})
}
