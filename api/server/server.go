package server

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sentinelchain/core/auth"
	"sentinelchain/core/engine"
	"sentinelchain/core/storage"
	"sentinelchain/core/threat"
)

func init() {
	godotenv.Load()
}

// Server exposes the node's operational surface: transaction and signature
// submission, mempool statistics, chain status, health, and node metrics.
// The identity dashboard itself lives elsewhere and talks to these
// endpoints as a client.
type Server struct {
	engine   *engine.Engine
	ledger   *storage.Ledger
	threats  *threat.Adapter
	verifier *auth.TokenVerifier // nil disables bearer auth
	port     string
}

func NewServer(eng *engine.Engine, ledger *storage.Ledger, threats *threat.Adapter) *Server {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return &Server{engine: eng, ledger: ledger, threats: threats, port: port}
}

// WithTokenVerifier gates submission endpoints behind validator bearer
// tokens minted by the identity product.
func (s *Server) WithTokenVerifier(v *auth.TokenVerifier) *Server {
	s.verifier = v
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/mempool/stats", s.handleMempoolStats)
	mux.HandleFunc("/mempool/expired", s.handleExpired)
	mux.HandleFunc("/txs", s.handleSubmitTx)
	mux.HandleFunc("/blocks/pending/signatures", s.handleSubmitSignature)
	mux.HandleFunc("/threat", s.handleThreat)
	return mux
}

// Start blocks serving HTTP until the listener fails.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Printf("[api] listening on :%s", s.port)
	return srv.ListenAndServe()
}

// requireValidatorToken checks the Authorization bearer token when a
// verifier is configured. Returns the signer ID from the token, or "" with
// auth disabled.
func (s *Server) requireValidatorToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.verifier == nil {
		return "", true
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return "", false
	}
	claims, err := s.verifier.VerifyToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
		return "", false
	}
	return claims.Sub, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
