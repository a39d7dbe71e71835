package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	core "sentinelchain/core"
	"sentinelchain/core/engine"
	"sentinelchain/core/mempool"
	"sentinelchain/core/storage"
)

type submitTxRequest struct {
	Payload   []byte  `json:"payload"`
	Fee       float64 `json:"fee"`
	SizeBytes int     `json:"sizeBytes"`
	Sender    string  `json:"sender,omitempty"`
}

// handleSubmitTx admits a transaction into the mempool.
func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req submitTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	tx, err := s.engine.SubmitTransaction(mempool.Transaction{
		Payload:   req.Payload,
		Fee:       req.Fee,
		SizeBytes: req.SizeBytes,
		Sender:    req.Sender,
	})
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"status": "rejected",
			"reason": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"txId":   tx.TxID,
	})
}

type submitSignatureRequest struct {
	SignerID  string `json:"signerId"`
	PublicKey string `json:"publicKey"` // base64 Ed25519
	Signature string `json:"signature"` // base64
}

// handleSubmitSignature routes a validator vote to the pending candidate.
func (s *Server) handleSubmitSignature(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	tokenSigner, ok := s.requireValidatorToken(w, r)
	if !ok {
		return
	}
	var req submitSignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if tokenSigner != "" && tokenSigner != req.SignerID {
		writeError(w, http.StatusForbidden, "token subject does not match signerId")
		return
	}
	pubKey, err := core.DecodePublicKey(req.PublicKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "signature is not valid base64")
		return
	}
	if err := s.engine.SubmitSignature(req.SignerID, pubKey, sig); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, engine.ErrNoPendingBlock) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{
			"status": "rejected",
			"reason": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleMempoolStats returns pending count, fee totals, and byte totals.
func (s *Server) handleMempoolStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

// handleExpired lists transactions evicted from the mempool.
func (s *Server) handleExpired(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ExpiredTransactions())
}

// handleThreat reports the live threat level driving the quorum threshold.
func (s *Server) handleThreat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.threats.Current())
}

type statusResponse struct {
	ChainHeight  int    `json:"chainHeight"`
	LatestHash   string `json:"latestHash,omitempty"`
	LatestIndex  uint64 `json:"latestIndex"`
	PendingBlock string `json:"pendingBlock,omitempty"`
}

// handleStatus reports chain height and the latest finalized block.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	height, err := s.ledger.ChainHeight()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := statusResponse{ChainHeight: height}
	if latest, err := s.ledger.Latest(); err == nil {
		resp.LatestHash = latest.Hash
		resp.LatestIndex = latest.Index
	} else if err != storage.ErrNotFound {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pending := s.engine.Pending(); pending != nil {
		resp.PendingBlock = pending.Hash
	}
	writeJSON(w, http.StatusOK, resp)
}
