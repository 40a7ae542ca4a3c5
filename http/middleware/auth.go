package middleware

import (
	"context"
	"net/http"
	"strings"

	"learnhub/http/response"
	"learnhub/models"
	"learnhub/store"
)

type contextKey string

const actorKey contextKey = "actor"

// RequireAuth resolves the bearer token to an actor and stores it on the
// request context. Requests without a resolvable token get 401.
func RequireAuth(catalog store.CatalogRepository, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			response.ErrorResponse(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		user, err := catalog.UserByToken(r.Context(), token)
		if err != nil {
			response.ErrorResponse(w, http.StatusUnauthorized, "invalid token")
			return
		}

		actor := models.Actor{
			UID:           user.ID,
			Role:          user.Role,
			InstitutionID: user.InstitutionID,
		}
		ctx := context.WithValue(r.Context(), actorKey, actor)
		next(w, r.WithContext(ctx))
	}
}

// ActorFrom returns the authenticated actor stored by RequireAuth.
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}
