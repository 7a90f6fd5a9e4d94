// Package notarytest provides an in-process OCSP responder for tests.
package notarytest

import (
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card/cardtest"
)

// Responder answers OCSP requests for certificates issued by one authority.
// Serials without an explicit status are reported as good.
type Responder struct {
	*httptest.Server

	ca *cardtest.Authority

	mu       sync.Mutex
	statuses map[string]int
	requests int
}

// NewResponder starts a responder and registers its shutdown with t.Cleanup.
func NewResponder(t testing.TB, ca *cardtest.Authority) *Responder {
	t.Helper()

	r := &Responder{ca: ca, statuses: make(map[string]int)}
	r.Server = httptest.NewServer(http.HandlerFunc(r.serveHTTP))
	t.Cleanup(r.Close)
	return r
}

// SetStatus sets the status reported for a serial number (ocsp.Good, ocsp.Revoked or ocsp.Unknown).
func (r *Responder) SetStatus(serial *big.Int, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[serial.String()] = status
}

// Requests returns the number of OCSP requests answered.
func (r *Responder) Requests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests
}

func (r *Responder) serveHTTP(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ocspReq, err := ocsp.ParseRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	r.requests++
	status, ok := r.statuses[ocspReq.SerialNumber.String()]
	r.mu.Unlock()
	if !ok {
		status = ocsp.Good
	}

	now := time.Now()
	template := ocsp.Response{
		Status:       status,
		SerialNumber: ocspReq.SerialNumber,
		ThisUpdate:   now.Add(-time.Minute),
		NextUpdate:   now.Add(time.Hour),
	}
	if status == ocsp.Revoked {
		template.RevokedAt = now.Add(-time.Hour)
		template.RevocationReason = ocsp.KeyCompromise
	}

	der, err := ocsp.CreateResponse(r.ca.Cert, r.ca.Cert, template, r.ca.Key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/ocsp-response")
	_, _ = w.Write(der)
}
