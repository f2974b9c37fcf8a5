// Package turnkeytest provides an in-process fake of the Turnkey API for tests.
package turnkeytest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/LampardNguyen234/evm-signer/turnkey"
)

const (
	OrganizationID = "org-0f4b2c"
	PrivateKeyID   = "pk-7d1e9a"
)

// Server is a fake Turnkey API holding a single secp256k1 key.
type Server struct {
	*httptest.Server

	APIPublicKey  string
	APIPrivateKey string

	// Key is the custody key behind PrivateKeyID.
	Key *ecdsa.PrivateKey

	mtx             sync.Mutex
	pendingPolls    int
	finalStatus     turnkey.ActivityStatus
	reportedAddress string

	activities map[string]*pendingActivity
	requests   int
}

type pendingActivity struct {
	activity turnkey.Activity
	polls    int
}

// NewServer starts a fake Turnkey API that is closed with the test.
func NewServer(t *testing.T) *Server {
	t.Helper()

	apiKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	s := &Server{
		APIPublicKey:  hex.EncodeToString(elliptic.MarshalCompressed(elliptic.P256(), apiKey.X, apiKey.Y)),
		APIPrivateKey: fmt.Sprintf("%064x", apiKey.D),
		Key:           key,
		finalStatus:   turnkey.ActivityStatusCompleted,
		activities:    make(map[string]*pendingActivity),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/public/v1/query/get_private_key", s.handleGetPrivateKey)
	mux.HandleFunc("/public/v1/submit/sign_raw_payload", s.handleSignRawPayload)
	mux.HandleFunc("/public/v1/query/get_activity", s.handleGetActivity)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

// Config returns a turnkey.Config pointing at the fake.
func (s *Server) Config() turnkey.Config {
	return turnkey.Config{
		APIPublicKey:   s.APIPublicKey,
		APIPrivateKey:  s.APIPrivateKey,
		BaseURL:        s.URL,
		OrganizationID: OrganizationID,
		PrivateKeyID:   PrivateKeyID,
	}
}

// SetPendingPolls sets how many get_activity calls report a pending state before an activity
// reaches its final status. Submissions answer pending as well when n > 0.
func (s *Server) SetPendingPolls(n int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.pendingPolls = n
}

// SetFinalStatus overrides the terminal status of signing activities.
func (s *Server) SetFinalStatus(status turnkey.ActivityStatus) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.finalStatus = status
}

// SetReportedAddress overrides the Ethereum address returned by get_private_key.
func (s *Server) SetReportedAddress(address string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.reportedAddress = address
}

// Requests returns the number of authenticated requests served.
func (s *Server) Requests() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.requests
}

// decode authenticates the request and decodes its body into v.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}

	pub, err := turnkey.VerifyStamp(r.Header.Get(turnkey.StampHeader), body)
	if err != nil || pub != s.APIPublicKey {
		writeError(w, http.StatusUnauthorized, "could not verify stamp")
		return false
	}

	if err = json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}

	s.mtx.Lock()
	s.requests++
	s.mtx.Unlock()

	return true
}

func (s *Server) handleGetPrivateKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrganizationID string `json:"organizationId"`
		PrivateKeyID   string `json:"privateKeyId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.OrganizationID != OrganizationID || req.PrivateKeyID != PrivateKeyID {
		writeError(w, http.StatusNotFound, "private key not found")
		return
	}

	s.mtx.Lock()
	address := s.reportedAddress
	s.mtx.Unlock()
	if address == "" {
		address = crypto.PubkeyToAddress(s.Key.PublicKey).Hex()
	}

	writeJSON(w, map[string]interface{}{
		"privateKey": turnkey.PrivateKey{
			PrivateKeyID:   PrivateKeyID,
			PrivateKeyName: "trading",
			PublicKey:      hex.EncodeToString(crypto.FromECDSAPub(&s.Key.PublicKey)),
			Curve:          turnkey.CurveSecp256k1,
			Addresses:      []turnkey.Address{{Format: turnkey.AddressFormatEthereum, Address: address}},
		},
	})
}

func (s *Server) handleSignRawPayload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type           string                       `json:"type"`
		OrganizationID string                       `json:"organizationId"`
		TimestampMs    string                       `json:"timestampMs"`
		Parameters     turnkey.SignRawPayloadParams `json:"parameters"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Type != "ACTIVITY_TYPE_SIGN_RAW_PAYLOAD" || req.TimestampMs == "" {
		writeError(w, http.StatusBadRequest, "bad activity")
		return
	}
	if req.Parameters.PrivateKeyID != PrivateKeyID ||
		req.Parameters.Encoding != turnkey.PayloadEncodingHexadecimal ||
		req.Parameters.HashFunction != turnkey.HashFunctionNoOp {
		writeError(w, http.StatusBadRequest, "bad parameters")
		return
	}

	digest, err := hex.DecodeString(req.Parameters.Payload)
	if err != nil || len(digest) != 32 {
		writeError(w, http.StatusBadRequest, "payload must be a 32-byte digest")
		return
	}
	sig, err := crypto.Sign(digest, s.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	activity := turnkey.Activity{
		ID:             fmt.Sprintf("act-%d", len(s.activities)+1),
		OrganizationID: OrganizationID,
		Type:           req.Type,
		Status:         s.finalStatus,
	}
	switch s.finalStatus {
	case turnkey.ActivityStatusCompleted:
		activity.Result = &turnkey.ActivityResult{SignRawPayloadResult: &turnkey.SignRawPayloadResult{
			R: hex.EncodeToString(sig[:32]),
			S: hex.EncodeToString(sig[32:64]),
			V: fmt.Sprintf("%02x", sig[64]),
		}}
	default:
		activity.Failure = &turnkey.ActivityFailure{Code: 9, Message: "policy denied"}
	}

	pending := &pendingActivity{activity: activity}
	s.activities[activity.ID] = pending

	if s.pendingPolls > 0 {
		writeJSON(w, map[string]interface{}{"activity": turnkey.Activity{
			ID:             activity.ID,
			OrganizationID: OrganizationID,
			Type:           req.Type,
			Status:         turnkey.ActivityStatusPending,
		}})
		return
	}

	writeJSON(w, map[string]interface{}{"activity": activity})
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrganizationID string `json:"organizationId"`
		ActivityID     string `json:"activityId"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	pending, ok := s.activities[req.ActivityID]
	if !ok {
		writeError(w, http.StatusNotFound, "activity not found")
		return
	}

	pending.polls++
	if pending.polls <= s.pendingPolls {
		a := pending.activity
		a.Status = turnkey.ActivityStatusPending
		a.Result, a.Failure = nil, nil
		writeJSON(w, map[string]interface{}{"activity": a})
		return
	}

	writeJSON(w, map[string]interface{}{"activity": pending.activity})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": status / 100, "message": msg})
}
