package handler

import (
	"net/http"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Auth: sign-up, sign-in, sign-out, password recovery
// ============================================================

func authSignUpHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signup")
		defer span.End()

		var req domain.SignUpRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		resp, err := authSvc.SignUp(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func authSignInHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signin")
		defer span.End()

		var req domain.SignInRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		resp, err := authSvc.SignIn(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func authSignOutHandler(authSvc *service.AuthService, pages *Pages, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signout")
		defer span.End()

		if id := IdentityFromContext(ctx); id != nil {
			pages.Drop(id.ID)
		}
		if err := authSvc.SignOut(ctx, tokenFromContext(ctx)); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func authForgotPasswordHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/password/forgot")
		defer span.End()

		var req domain.ForgotPasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := authSvc.ForgotPassword(ctx, &req); err != nil {
			var banner *domain.Banner
			if !isValidation(err) {
				banner = domain.ErrorBanner("Failed to send reset link: " + service.UserMessage(err))
			}
			writeServiceError(w, err, banner, logger)
			return
		}

		writeJSON(w, http.StatusOK, bannerResponse{Banner: domain.SuccessBanner("Password reset link sent to your email!")})
	}
}

func authResetPasswordHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/password/reset")
		defer span.End()

		var req domain.ResetPasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := authSvc.ResetPassword(ctx, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Next   domain.Route   `json:"next"`
			Banner *domain.Banner `json:"banner"`
		}{
			Next:   domain.RouteLogin,
			Banner: domain.SuccessBanner("Password updated successfully!"),
		})
	}
}
