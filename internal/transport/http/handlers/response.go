package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/n0P7xJ/MyReactNative/internal/service"
	"github.com/n0P7xJ/MyReactNative/internal/transport/http/middleware"
	"github.com/n0P7xJ/MyReactNative/pkg/validator"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("handlers")

var errorCodes = []struct {
	err  error
	code string
}{
	{service.ErrUserNotFound, "USER_NOT_FOUND"},
	{service.ErrConversationNotFound, "CONVERSATION_NOT_FOUND"},
	{service.ErrMessageNotFound, "MESSAGE_NOT_FOUND"},
	{service.ErrInviteNotFound, "INVITE_NOT_FOUND"},
	{service.ErrInviteInactive, "INVITE_INACTIVE"},
	{service.ErrNotGroup, "NOT_GROUP"},
	{service.ErrAlreadyMember, "ALREADY_MEMBER"},
	{service.ErrNotParticipant, "NOT_PARTICIPANT"},
	{service.ErrNotAdmin, "FORBIDDEN"},
	{service.ErrEmailTaken, "EMAIL_TAKEN"},
	{service.ErrInvalidCreds, "INVALID_CREDENTIALS"},
	{service.ErrInvalidToken, "UNAUTHORIZED"},
	{service.ErrPrivateNeedsPair, "INVALID_PARTICIPANTS"},
	{service.ErrContentRequired, "MISSING_CONTENT"},
	{service.ErrReplyMismatch, "INVALID_REPLY"},
}

// writeServiceError maps a service error onto a status and error code.
// Anything unclassified is logged and reported as INTERNAL.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		writeValidationErrors(w, verrs)
		return
	}

	var status int
	switch service.KindOf(err) {
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindForbidden:
		status = http.StatusForbidden
	case service.KindUnauthorized:
		status = http.StatusUnauthorized
	case service.KindConflict, service.KindValidation:
		status = http.StatusBadRequest
	default:
		log.Errorf("%s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	code := "BAD_REQUEST"
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			code = c.code
			break
		}
	}
	writeError(w, status, code, err.Error())
}

// allowActor refuses the request when an authenticated caller acts on
// behalf of another user.
func allowActor(w http.ResponseWriter, r *http.Request, actorID uuid.UUID) bool {
	authID, ok := middleware.UserID(r.Context())
	if ok && authID != actorID {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only act as yourself")
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	return parseUUID(w, r.PathValue(name), name)
}

func queryUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	return parseUUID(w, r.URL.Query().Get(name), name)
}

func parseUUID(w http.ResponseWriter, raw, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":   "VALIDATION_ERROR",
			"fields": errs,
		},
	})
}
