package handler

import (
	"net/http"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/service"

	"go.uber.org/zap"
)

func onboardingHandler(onboarding *service.Onboarding, pages *Pages, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding")
		defer span.End()

		var form domain.OnboardingForm
		if !decodeJSON(w, r, &form) {
			return
		}

		user := IdentityFromContext(ctx)
		res, err := onboarding.Submit(ctx, user, &form)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		// the cached dashboard predates the profile
		pages.Drop(user.ID)

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, res)
	}
}
