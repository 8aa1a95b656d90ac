package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/foae/riskdet/classify"
	"github.com/foae/riskdet/loader"
	"github.com/foae/riskdet/netutil"
)

// Router serves the classification endpoint plus the access-key-gated
// admin surface.
type Router struct {
	accessKey  string
	loader     *loader.Supervisor
	classifier *classify.Classifier
}

// NewRouter returns a Router wired to sup and c. An empty accessKey
// disables admin auth, which is acceptable only for local development.
func NewRouter(accessKey string, sup *loader.Supervisor, c *classify.Classifier) *Router {
	return &Router{accessKey: accessKey, loader: sup, classifier: c}
}

func (rt *Router) authorized(r *http.Request) bool {
	if rt.accessKey == "" {
		return true
	}
	return r.Header.Get("AccessKey") == rt.accessKey
}

type classifyRequest struct {
	Email string `json:"email"`
	IP    string `json:"ip"`
}

type classifyResponse struct {
	RiskLevel string   `json:"risk_level"`
	Reasons   []string `json:"reasons"`
}

func (rt *Router) handleClassify(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"malformed request body"}`))
		return
	}
	if req.Email == "" && req.IP == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"email or ip is required"}`))
		return
	}
	if req.IP != "" && !netutil.IsIPv4(req.IP) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"malformed ip"}`))
		return
	}
	if req.Email != "" {
		at := strings.LastIndex(req.Email, "@")
		if at <= 0 || !netutil.IsDomain(req.Email[at+1:]) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"malformed email"}`))
			return
		}
	}

	verdict := rt.classifier.Classify(r.Context(), classify.Request{Email: req.Email, IP: req.IP})

	resp := classifyResponse{RiskLevel: verdict.Level.String(), Reasons: verdict.Reasons}
	if resp.Reasons == nil {
		resp.Reasons = []string{}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (rt *Router) handleUpdateNow(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !rt.authorized(r) {
		log.Printf("admin: unauthorized update request from %v", r.RemoteAddr)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := rt.loader.UpdateNow(ctx); err != nil {
		log.Printf("admin: update_now failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"update failed"}`))
		return
	}
	_, _ = w.Write([]byte(`{"msg":"OK"}`))
}

func (rt *Router) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !rt.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	_ = json.NewEncoder(w).Encode(rt.loader.Status())
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"msg":"OK"}`))
}
