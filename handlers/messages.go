package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/JatinSri1909/slack-connect-server/core"
	"github.com/JatinSri1909/slack-connect-server/models"
	"github.com/JatinSri1909/slack-connect-server/services"
)

// MessagesHTTPHandler exposes the scheduling control surface over HTTP
type MessagesHTTPHandler struct {
	messagesService    services.MessagesService
	transportService   services.TransportService
	credentialsService services.CredentialsService
	deliveryTrigger    services.DeliveryTrigger
}

func NewMessagesHTTPHandler(
	messagesService services.MessagesService,
	transportService services.TransportService,
	credentialsService services.CredentialsService,
	deliveryTrigger services.DeliveryTrigger,
) *MessagesHTTPHandler {
	return &MessagesHTTPHandler{
		messagesService:    messagesService,
		transportService:   transportService,
		credentialsService: credentialsService,
		deliveryTrigger:    deliveryTrigger,
	}
}

func (h *MessagesHTTPHandler) SetupEndpoints(router *mux.Router) {
	router.HandleFunc("/api/messages", h.HandleScheduleMessage).Methods("POST")
	router.HandleFunc("/api/messages", h.HandleListPendingMessages).Methods("GET")
	router.HandleFunc("/api/messages/{id}", h.HandleCancelMessage).Methods("DELETE")
	router.HandleFunc("/api/scheduler/trigger", h.HandleTriggerDelivery).Methods("POST")
	router.HandleFunc("/api/channels", h.HandleListChannels).Methods("GET")
	router.HandleFunc("/api/channels/{id}/join", h.HandleJoinChannel).Methods("POST")
	router.HandleFunc("/api/workspaces", h.HandleListWorkspaces).Methods("GET")
}

type scheduleMessageRequest struct {
	TeamID        string `json:"team_id"`
	ChannelID     string `json:"channel_id"`
	ChannelName   string `json:"channel_name"`
	Message       string `json:"message"`
	ScheduledTime string `json:"scheduled_time"` // RFC 3339
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type cancelMessageResponse struct {
	Cancelled bool `json:"cancelled"`
}

type workspaceResponse struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
}

func (h *MessagesHTTPHandler) HandleScheduleMessage(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Schedule message request received from %s", r.RemoteAddr)

	var req scheduleMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Failed to decode schedule request: %v", err)
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Code: "validation_error"})
		return
	}

	scheduledTime, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		log.Printf("❌ Invalid scheduled_time %q: %v", req.ScheduledTime, err)
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{
			Error: "scheduled_time must be an RFC 3339 timestamp",
			Code:  "validation_error",
		})
		return
	}

	message, err := h.messagesService.ScheduleMessage(
		r.Context(),
		req.TeamID,
		req.ChannelID,
		req.ChannelName,
		req.Message,
		scheduledTime,
	)
	if err != nil {
		writeServiceError(w, err, "failed to schedule message")
		return
	}

	writeJSONResponse(w, http.StatusCreated, message)
}

func (h *MessagesHTTPHandler) HandleListPendingMessages(w http.ResponseWriter, r *http.Request) {
	teamID := r.URL.Query().Get("team_id")
	log.Printf("📋 List pending messages request for team %s", teamID)

	pending, err := h.messagesService.ListPendingMessages(r.Context(), teamID)
	if err != nil {
		writeServiceError(w, err, "failed to list pending messages")
		return
	}

	if pending == nil {
		pending = []*models.ScheduledMessage{}
	}
	writeJSONResponse(w, http.StatusOK, pending)
}

func (h *MessagesHTTPHandler) HandleCancelMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	teamID := r.URL.Query().Get("team_id")
	log.Printf("📋 Cancel message request for %s (team %s)", id, teamID)

	cancelled, err := h.messagesService.CancelMessage(r.Context(), id, teamID)
	if err != nil {
		writeServiceError(w, err, "failed to cancel message")
		return
	}

	writeJSONResponse(w, http.StatusOK, cancelMessageResponse{Cancelled: cancelled})
}

func (h *MessagesHTTPHandler) HandleTriggerDelivery(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Manual delivery trigger request from %s", r.RemoteAddr)

	// The trigger never exposes internal delivery failures upward; the cycle
	// logs and isolates them per message.
	if err := h.deliveryTrigger.TriggerNow(r.Context()); err != nil {
		log.Printf("❌ Manual delivery cycle failed: %v", err)
		writeJSONResponse(w, http.StatusInternalServerError, errorResponse{
			Error: "delivery cycle failed",
			Code:  "internal_error",
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MessagesHTTPHandler) HandleListChannels(w http.ResponseWriter, r *http.Request) {
	teamID := r.URL.Query().Get("team_id")
	log.Printf("📋 List channels request for team %s", teamID)

	channels, err := h.transportService.ListChannels(r.Context(), teamID)
	if err != nil {
		writeServiceError(w, err, "failed to list channels")
		return
	}

	writeJSONResponse(w, http.StatusOK, channels)
}

func (h *MessagesHTTPHandler) HandleJoinChannel(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	teamID := r.URL.Query().Get("team_id")
	log.Printf("📋 Join channel request for %s (team %s)", channelID, teamID)

	result, err := h.transportService.JoinChannel(r.Context(), teamID, channelID)
	if err != nil {
		writeServiceError(w, err, "failed to join channel")
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

func (h *MessagesHTTPHandler) HandleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 List workspaces request from %s", r.RemoteAddr)

	workspaces, err := h.credentialsService.GetAllWorkspaces(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to list workspaces")
		return
	}

	response := make([]workspaceResponse, 0, len(workspaces))
	for _, workspace := range workspaces {
		response = append(response, workspaceResponse{
			TeamID:   workspace.SlackTeamID,
			TeamName: workspace.SlackTeamName,
		})
	}
	writeJSONResponse(w, http.StatusOK, response)
}

// writeServiceError maps the error taxonomy onto HTTP statuses with a stable
// machine-readable code
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	log.Printf("❌ %s: %v", fallback, err)

	switch {
	case core.IsValidationError(err):
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation_error"})
	case core.IsCredentialError(err):
		writeJSONResponse(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Code: "reauth_required"})
	case core.IsNotFoundError(err):
		writeJSONResponse(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"})
	default:
		var notInChannel *core.NotInChannelError
		if errors.As(err, &notInChannel) {
			writeJSONResponse(w, http.StatusConflict, errorResponse{Error: notInChannel.Error(), Code: "not_in_channel"})
			return
		}
		writeJSONResponse(w, http.StatusInternalServerError, errorResponse{Error: fallback, Code: "internal_error"})
	}
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("❌ Failed to encode JSON response: %v", err)
	}
}
