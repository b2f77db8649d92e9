package handler

import (
	"net/http"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/service"

	"go.uber.org/zap"
)

func contactHandler(contact *service.Contact, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/contact")
		defer span.End()

		var msg domain.ContactMessage
		if !decodeJSON(w, r, &msg) {
			return
		}

		banner, err := contact.Send(ctx, &msg)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, bannerResponse{Banner: banner})
	}
}
