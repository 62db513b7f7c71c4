package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/service"
)

type MessengerHandler struct {
	conversationService *service.ConversationService
}

func NewMessengerHandler(conversationService *service.ConversationService) *MessengerHandler {
	return &MessengerHandler{conversationService: conversationService}
}

func (h *MessengerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateConversationInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !allowActor(w, r, input.CreatedByID) {
		return
	}

	conv, err := h.conversationService.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, "create conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *MessengerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userId")
	if !ok || !allowActor(w, r, userID) {
		return
	}

	convs, err := h.conversationService.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "list conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, convs)
}

// Subresource serves GET /conversations/{ref}/{sub}. The invite preview
// shares the shape of the per-conversation reads, so one pattern routes both.
func (h *MessengerHandler) Subresource(w http.ResponseWriter, r *http.Request) {
	ref, sub := r.PathValue("ref"), r.PathValue("sub")
	if ref == "invite" {
		h.getByInvite(w, r, sub)
		return
	}

	conversationID, err := uuid.Parse(ref)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversationId")
		return
	}
	switch sub {
	case "messages":
		h.messages(w, r, conversationID)
	case "view":
		h.get(w, r, conversationID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown resource")
	}
}

func (h *MessengerHandler) messages(w http.ResponseWriter, r *http.Request, conversationID uuid.UUID) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 50)

	msgs, err := h.conversationService.Messages(r.Context(), conversationID, page, pageSize)
	if err != nil {
		writeServiceError(w, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

func (h *MessengerHandler) get(w http.ResponseWriter, r *http.Request, conversationID uuid.UUID) {
	userID, ok := queryUUID(w, r, "userId")
	if !ok || !allowActor(w, r, userID) {
		return
	}

	conv, err := h.conversationService.Get(r.Context(), conversationID, userID)
	if err != nil {
		writeServiceError(w, "get conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *MessengerHandler) getByInvite(w http.ResponseWriter, r *http.Request, token string) {
	summary, err := h.conversationService.GetByInvite(r.Context(), token)
	if err != nil {
		writeServiceError(w, "get invite", err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *MessengerHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathUUID(w, r, "conversationId")
	if !ok {
		return
	}
	userID, ok := queryUUID(w, r, "userId")
	if !ok || !allowActor(w, r, userID) {
		return
	}

	if _, err := h.conversationService.MarkAsRead(r.Context(), conversationID, userID); err != nil {
		writeServiceError(w, "mark conversation read", err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *MessengerHandler) Join(w http.ResponseWriter, r *http.Request) {
	var input service.JoinInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !allowActor(w, r, input.UserID) {
		return
	}

	conv, err := h.conversationService.JoinByInvite(r.Context(), input)
	if err != nil {
		writeServiceError(w, "join conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *MessengerHandler) RegenerateInvite(w http.ResponseWriter, r *http.Request) {
	var input service.InviteActionInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !allowActor(w, r, input.UserID) {
		return
	}

	conv, err := h.conversationService.RegenerateInvite(r.Context(), input)
	if err != nil {
		writeServiceError(w, "regenerate invite", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *MessengerHandler) ToggleInvite(w http.ResponseWriter, r *http.Request) {
	var input service.InviteActionInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !allowActor(w, r, input.UserID) {
		return
	}

	conv, err := h.conversationService.ToggleInvite(r.Context(), input)
	if err != nil {
		writeServiceError(w, "toggle invite", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *MessengerHandler) Leave(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathUUID(w, r, "conversationId")
	if !ok {
		return
	}
	userID, ok := queryUUID(w, r, "userId")
	if !ok || !allowActor(w, r, userID) {
		return
	}

	if err := h.conversationService.Leave(r.Context(), conversationID, userID); err != nil {
		writeServiceError(w, "leave conversation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type muteInput struct {
	UserID  uuid.UUID `json:"userId"`
	IsMuted bool      `json:"isMuted"`
}

func (h *MessengerHandler) Mute(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathUUID(w, r, "conversationId")
	if !ok {
		return
	}
	var input muteInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !allowActor(w, r, input.UserID) {
		return
	}

	if err := h.conversationService.SetMuted(r.Context(), conversationID, input.UserID, input.IsMuted); err != nil {
		writeServiceError(w, "mute conversation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MessengerHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathUUID(w, r, "conversationId")
	if !ok {
		return
	}
	var input service.UpdateGroupInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if !allowActor(w, r, input.UserID) {
		return
	}

	conv, err := h.conversationService.UpdateGroup(r.Context(), conversationID, input)
	if err != nil {
		writeServiceError(w, "update group", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}
