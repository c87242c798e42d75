package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cartavio/imagesync-backend/api/responses"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
	"github.com/cartavio/imagesync-backend/pkg/logger"
)

const tenantHeader = "X-User-ID"

// Tenant requires the X-User-ID header, set by the gateway in front of this
// service, and scopes the request to that tenant.
func Tenant(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(tenantHeader)
			if raw == "" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "missing X-User-ID header"))
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "X-User-ID must be a uuid"))
				return
			}

			ctx := WithUserID(r.Context(), userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
