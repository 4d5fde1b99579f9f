package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"deletionportal/internal/adapters/http/middleware"
	"deletionportal/internal/application/orchestrators"
	"deletionportal/internal/application/portal"
)

// currentEntry returns the portal entry for the signed-in session.
// Writes the unauthenticated response and returns false when there is none.
func currentEntry(w http.ResponseWriter, r *http.Request) (portal.Entry, bool) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if ok {
		if entry, found := portals.Lookup(r.Context(), sess.Token); found {
			return entry, true
		}
	}
	middleware.ClearSessionCookie(w)
	if wantsJSON(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	} else {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
	return portal.Entry{}, false
}

// respond finishes a portal action: JSON clients get the screen and a status
// derived from err; browsers are sent back to the page, which shows any error banner.
func respond(w http.ResponseWriter, r *http.Request, entry portal.Entry, err error) {
	if wantsJSON(r) {
		resp := screenResponse{Screen: entry.Screen.Snapshot()}
		if err != nil {
			resp.Error = err.Error()
		}
		writeJSON(w, statusFor(err), resp)
		return
	}
	http.Redirect(w, r, "/account/deletion", http.StatusSeeOther)
}

// handleDeletionPage renders the deletion management page from the session's screen.
func handleDeletionPage(w http.ResponseWriter, r *http.Request) {
	entry, ok := currentEntry(w, r)
	if !ok {
		return
	}
	snap := entry.Screen.Snapshot()
	if snap.LoginVisible {
		// Signed out between the cookie check and the lookup.
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	renderTemplate(w, r, http.StatusOK, "deletion.html", map[string]any{
		"Screen": snap,
		"Policy": policyText(),
	})
}

// handleDeletionAPI returns the session's screen as JSON.
func handleDeletionAPI(w http.ResponseWriter, r *http.Request) {
	entry, ok := currentEntry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, screenResponse{Screen: entry.Screen.Snapshot()})
}

// handleHistoryAPI lists the signed-in user's own audit trail.
func handleHistoryAPI(w http.ResponseWriter, r *http.Request) {
	if auditLog == nil {
		http.NotFound(w, r)
		return
	}
	sess, _ := middleware.GetSessionFromContext(r.Context())
	events, err := orchestrators.ExecuteListHistory(r.Context(), sess.UserID, orchestrators.ListHistoryDeps{Store: auditLog})
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// handleConfirmDeletion is click-confirm.
func handleConfirmDeletion(w http.ResponseWriter, r *http.Request) {
	entry, ok := currentEntry(w, r)
	if !ok {
		return
	}
	err := entry.Controller.Confirm(r.Context())
	respond(w, r, entry, err)
}

// handleRequestCancel is click-cancel. It records the intent; the prompt on
// the page (or the cancel_intent_id in the JSON screen) carries it to confirm.
func handleRequestCancel(w http.ResponseWriter, r *http.Request) {
	entry, ok := currentEntry(w, r)
	if !ok {
		return
	}
	_, err := entry.Controller.RequestCancel()
	respond(w, r, entry, err)
}

type cancelConfirmRequest struct {
	IntentID string `json:"intent_id"`
}

// handleConfirmCancel is confirm-cancel.
func handleConfirmCancel(w http.ResponseWriter, r *http.Request) {
	entry, ok := currentEntry(w, r)
	if !ok {
		return
	}

	var intentID string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body cancelConfirmRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, screenResponse{Screen: entry.Screen.Snapshot(), Error: "invalid JSON body"})
			return
		}
		intentID = body.IntentID
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		intentID = r.FormValue("IntentID")
	}

	err := entry.Controller.ConfirmCancel(r.Context(), intentID)
	respond(w, r, entry, err)
}

// handleDismissCancel is dismiss-cancel.
func handleDismissCancel(w http.ResponseWriter, r *http.Request) {
	entry, ok := currentEntry(w, r)
	if !ok {
		return
	}
	entry.Controller.DismissCancel()
	respond(w, r, entry, nil)
}

// handleRefresh re-fetches the request, used after a failed load.
func handleRefresh(w http.ResponseWriter, r *http.Request) {
	entry, ok := currentEntry(w, r)
	if !ok {
		return
	}
	err := entry.Controller.Refresh(r.Context())
	respond(w, r, entry, err)
}
