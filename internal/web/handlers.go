package web

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/dashgate/internal/apiclient"
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// SignInRequest is the body of the backend's sign-in endpoint.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpRequest is the body of the backend's sign-up endpoint.
type SignUpRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// SessionResponse is returned by the backend on successful authentication.
type SessionResponse struct {
	Token string `json:"token"`
}

// healthResponse is served on the health route.
type healthResponse struct {
	Status string `json:"status"`
}

// apiError is the body of errors the gateway itself produces on the API route.
// Backend errors are passed through untouched. SignIn is set when the caller
// has to authenticate again.
type apiError struct {
	Error  string `json:"error"`
	SignIn string `json:"sign_in,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, body any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode JSON response", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, healthResponse{Status: "ok"}, http.StatusOK)
}

func (s *Server) handleSignInForm(w http.ResponseWriter, r *http.Request) {
	render(r.Context(), w, "sign_in", s.signInPage(), http.StatusOK)
}

func (s *Server) handleSignUpForm(w http.ResponseWriter, r *http.Request) {
	render(r.Context(), w, "sign_up", s.signUpPage(), http.StatusOK)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := s.signInPage()

	req := SignInRequest{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	page.Email = req.Email

	if err := validate.Struct(req); err != nil {
		page.Error = "enter a valid email address and password"
		render(ctx, w, "sign_in", page, http.StatusBadRequest)
		return
	}

	status, err := s.authenticate(w, r, "/sign_in", req)
	if err != nil {
		page.Error = authErrorMessage(err, "invalid email or password")
		render(ctx, w, "sign_in", page, status)
		return
	}

	slog.InfoContext(ctx, "signed in")
	http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := s.signUpPage()

	req := SignUpRequest{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	page.Name, page.Email = req.Name, req.Email

	if err := validate.Struct(req); err != nil {
		page.Error = "enter your name, a valid email address and a password of at least 8 characters"
		render(ctx, w, "sign_up", page, http.StatusBadRequest)
		return
	}

	status, err := s.authenticate(w, r, "/sign_up", req)
	if err != nil {
		page.Error = authErrorMessage(err, "could not create the account")
		render(ctx, w, "sign_up", page, status)
		return
	}

	slog.InfoContext(ctx, "signed up")
	http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
}

// authenticate posts credentials to the backend and stores the returned token in
// the session cookie. The client has no navigator: a 401 here means bad
// credentials, and redirecting to the sign-in page would loop.
// Returns the status to render on failure.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, endpoint string, body any) (int, error) {
	ctx := r.Context()

	store, err := s.cookieStore(w, r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	client, err := s.sessionClient(store, nil)
	if err != nil {
		return http.StatusInternalServerError, err
	}

	var session SessionResponse
	if err := client.Post(ctx, endpoint, body, &session); err != nil {
		slog.WarnContext(ctx, "authentication failed", "endpoint", endpoint, "error", err)
		if status := apiclient.StatusCode(err); status >= 400 && status < 500 {
			return status, err
		}
		return http.StatusBadGateway, err
	}
	if session.Token == "" {
		return http.StatusBadGateway, fmt.Errorf("backend returned no token")
	}

	if err := store.Write(ctx, session.Token); err != nil {
		return http.StatusInternalServerError, fmt.Errorf("storing session: %w", err)
	}
	return http.StatusOK, nil
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	store, err := s.cookieStore(w, r)
	if err == nil {
		err = store.Clear(ctx)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to clear session", "error", err)
	}

	http.Redirect(w, r, s.cfg.SignInPath, http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	store, err := s.cookieStore(w, r)
	if err != nil {
		http.Redirect(w, r, s.cfg.SignInPath, http.StatusSeeOther)
		return
	}
	nav := &redirectNavigator{w: w, r: r}
	client, err := s.sessionClient(store, nav)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session client", "error", err)
		render(ctx, w, "dashboard", dashboardPage{Error: "something went wrong"}, http.StatusInternalServerError)
		return
	}

	var profile map[string]any
	if err := client.Get(ctx, "/user/profile", &profile); err != nil {
		if nav.Navigated() {
			return
		}
		slog.ErrorContext(ctx, "failed to load profile", "error", err)
		render(ctx, w, "dashboard", dashboardPage{Error: "could not load your profile"}, http.StatusBadGateway)
		return
	}

	page := dashboardPage{}
	for key, value := range profile {
		page.Fields = append(page.Fields, field{Key: key, Value: value})
	}
	slices.SortFunc(page.Fields, func(a, b field) int { return cmp.Compare(a.Key, b.Key) })

	render(ctx, w, "dashboard", page, http.StatusOK)
}

func (s *Server) signInPage() formPage {
	return formPage{Action: s.cfg.SignInPath, AltPath: s.cfg.SignUpPath}
}

func (s *Server) signUpPage() formPage {
	return formPage{Action: s.cfg.SignUpPath, AltPath: s.cfg.SignInPath}
}

// authErrorMessage prefers the backend's own message for client errors.
func authErrorMessage(err error, fallback string) string {
	var statusErr *apiclient.StatusError
	if !errors.As(err, &statusErr) {
		return "the service is unavailable, try again later"
	}
	if statusErr.StatusCode == http.StatusUnauthorized || statusErr.Message == "" {
		return fallback
	}
	return statusErr.Message
}
