package handlers

import "net/http"

// Routes registers the REST API on mux. protect wraps routes that carry a
// user identity.
func Routes(mux *http.ServeMux, register *RegisterHandler, messenger *MessengerHandler, protect func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/register", register.Register)
	mux.HandleFunc("POST /api/register/login", register.Login)
	mux.HandleFunc("GET /api/register/check-email", register.CheckEmail)
	mux.HandleFunc("GET /api/register/{id}", register.GetUser)

	mux.Handle("GET /api/messenger/conversations/{ref}/{sub}", protect(http.HandlerFunc(messenger.Subresource)))
	mux.Handle("POST /api/messenger/conversations", protect(http.HandlerFunc(messenger.Create)))
	mux.Handle("GET /api/messenger/conversations/{userId}", protect(http.HandlerFunc(messenger.List)))
	mux.Handle("POST /api/messenger/conversations/join", protect(http.HandlerFunc(messenger.Join)))
	mux.Handle("POST /api/messenger/conversations/regenerate-invite", protect(http.HandlerFunc(messenger.RegenerateInvite)))
	mux.Handle("POST /api/messenger/conversations/toggle-invite", protect(http.HandlerFunc(messenger.ToggleInvite)))
	mux.Handle("POST /api/messenger/conversations/{conversationId}/read", protect(http.HandlerFunc(messenger.MarkRead)))
	mux.Handle("POST /api/messenger/conversations/{conversationId}/leave", protect(http.HandlerFunc(messenger.Leave)))
	mux.Handle("POST /api/messenger/conversations/{conversationId}/mute", protect(http.HandlerFunc(messenger.Mute)))
	mux.Handle("PATCH /api/messenger/conversations/{conversationId}", protect(http.HandlerFunc(messenger.UpdateGroup)))
}
