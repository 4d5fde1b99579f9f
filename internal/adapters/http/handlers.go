package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"deletionportal/internal/adapters/http/middleware"
	"deletionportal/internal/application/orchestrators"
	"deletionportal/internal/application/portal"
	"deletionportal/internal/domain/deletion"
)

//go:embed templates/*.html templates/*.md
var templatesFS embed.FS

var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// wantsJSON reports whether the client asked for, or sent, JSON.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json_encode_failed", "error", err)
	}
}

// renderMarkdown converts md to HTML, falling back to escaped text.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

func renderTemplate(w http.ResponseWriter, r *http.Request, status int, templateName string, data any) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	email := ""
	if ok {
		email = sess.Email
	}

	funcMap := template.FuncMap{
		"currentEmail":   func() string { return email },
		"isLoggedIn":     func() bool { return ok },
		"csrfToken":      func() string { return csrf.Token(r) },
		"renderMarkdown": renderMarkdown,
	}

	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(templatesFS, "templates/layout.html", "templates/"+templateName)
	if err != nil {
		internalError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// policyText returns the grace-period policy shown on the deletion page.
func policyText() string {
	b, err := templatesFS.ReadFile("templates/policy.md")
	if err != nil {
		slog.Warn("policy_text_missing", "error", err)
		return ""
	}
	return string(b)
}

// statusFor maps an operation error to the HTTP status returned to JSON clients.
func statusFor(err error) int {
	var (
		ve *orchestrators.ValidationError
		ae *orchestrators.AuthError
		re *orchestrators.RepositoryError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ae):
		return http.StatusUnauthorized
	case errors.Is(err, deletion.ErrAlreadyPending),
		errors.Is(err, deletion.ErrNoActiveRequest),
		errors.Is(err, portal.ErrOperationInFlight),
		errors.Is(err, portal.ErrStaleCancelIntent):
		return http.StatusConflict
	case errors.As(err, &re):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// screenResponse is the JSON body for portal operations.
type screenResponse struct {
	Screen portal.Snapshot `json:"screen"`
	Error  string          `json:"error,omitempty"`
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/account/deletion", http.StatusSeeOther)
}

// handleLoginPage renders the login form, or redirects signed-in users to their deletion page.
func handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetSessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/account/deletion", http.StatusSeeOther)
		return
	}
	screen := portal.NewScreen()
	portal.Render(screen, portal.LoggedOut, nil, deletion.View{})
	renderTemplate(w, r, http.StatusOK, "login.html", map[string]any{
		"Screen": screen.Snapshot(),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin is submit-login. Form posts use Email/Password fields; JSON clients send {"email","password"}.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	var input orchestrators.LoginInput
	isJSON := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
	if isJSON {
		var body loginRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, screenResponse{Error: "invalid JSON body"})
			return
		}
		input = orchestrators.LoginInput{Email: body.Email, Password: body.Password}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input = orchestrators.LoginInput{
			Email:    r.FormValue("Email"),
			Password: r.FormValue("Password"),
		}
	}

	sess, err := orchestrators.ExecuteLogin(r.Context(), input, orchestrators.LoginDeps{Identity: identityProvider})
	if err != nil {
		screen := portal.NewScreen()
		portal.RenderLoginError(screen, input.Email, err.Error())
		if wantsJSON(r) {
			writeJSON(w, statusFor(err), screenResponse{Screen: screen.Snapshot(), Error: err.Error()})
			return
		}
		renderTemplate(w, r, statusFor(err), "login.html", map[string]any{
			"Screen": screen.Snapshot(),
		})
		return
	}

	middleware.SetSessionCookie(w, sess.Token)
	slog.Info("auth_event", "event", "login_success", "user_id", sess.UserID)

	if wantsJSON(r) {
		entry, ok := portals.Lookup(r.Context(), sess.Token)
		if !ok {
			internalError(w, errors.New("no controller for new session"))
			return
		}
		writeJSON(w, http.StatusOK, screenResponse{Screen: entry.Screen.Snapshot()})
		return
	}
	http.Redirect(w, r, "/account/deletion", http.StatusSeeOther)
}

// handleLogout is click-logout. The identity provider's sign-out event resets the session's controller.
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
		if entry, ok := portals.Lookup(r.Context(), sess.Token); ok {
			if err := entry.Controller.Logout(r.Context()); err != nil {
				slog.Warn("auth_event", "event", "logout_failed", "user_id", sess.UserID, "error", err)
				if wantsJSON(r) {
					writeJSON(w, statusFor(err), screenResponse{Screen: entry.Screen.Snapshot(), Error: err.Error()})
					return
				}
				http.Redirect(w, r, "/account/deletion", http.StatusSeeOther)
				return
			}
		}
	}

	middleware.ClearSessionCookie(w)
	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleHealthz reports liveness and database reachability.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := map[string]any{}
	if dbPing == nil {
		components["database"] = map[string]any{"status": "not_configured"}
	} else if err := dbPing(r.Context()); err != nil {
		status = "degraded"
		slog.Warn("healthz_degraded", "component", "database", "error", err)
		components["database"] = map[string]any{"status": "down"}
	} else {
		components["database"] = map[string]any{"status": "up"}
	}
	if portals != nil {
		components["controllers"] = portals.Len()
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}
