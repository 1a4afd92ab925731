package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/JatinSri1909/slack-connect-server/services"
)

// SlackOAuthHandler performs the one-time authorization-code exchange. It is
// thin plumbing: all persistence happens in the credentials service.
type SlackOAuthHandler struct {
	credentialsService services.CredentialsService
	redirectURL        string
}

func NewSlackOAuthHandler(credentialsService services.CredentialsService, redirectURL string) *SlackOAuthHandler {
	return &SlackOAuthHandler{
		credentialsService: credentialsService,
		redirectURL:        redirectURL,
	}
}

func (h *SlackOAuthHandler) SetupEndpoints(router *mux.Router) {
	router.HandleFunc("/slack/oauth/callback", h.HandleOAuthCallback).Methods("GET")
}

type oauthCallbackResponse struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
}

func (h *SlackOAuthHandler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	log.Printf("🔐 OAuth callback received from %s", r.RemoteAddr)

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		log.Printf("❌ OAuth flow denied by user: %s", errParam)
		http.Error(w, "authorization was denied", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		log.Printf("❌ OAuth callback missing code parameter")
		http.Error(w, "missing code parameter", http.StatusBadRequest)
		return
	}

	integration, err := h.credentialsService.ExchangeOAuthCode(r.Context(), code, h.redirectURL)
	if err != nil {
		log.Printf("❌ Failed to exchange OAuth code: %v", err)
		http.Error(w, "failed to complete slack authorization", http.StatusBadGateway)
		return
	}

	log.Printf("✅ Workspace connected: %s (%s)", integration.SlackTeamName, integration.SlackTeamID)
	writeJSONResponse(w, http.StatusOK, oauthCallbackResponse{
		TeamID:   integration.SlackTeamID,
		TeamName: integration.SlackTeamName,
	})
}
