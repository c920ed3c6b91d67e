// Package oauthlogin handles the callback leg of an external identity
// provider: the profile arrives already authenticated by the provider,
// this endpoint only binds it to a local account and issues tokens.
package oauthlogin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"auth_backend/internal/auth"
	"auth_backend/internal/credentials"
	resp "auth_backend/internal/lib/api/response"
	sl "auth_backend/internal/lib/logger"
	"auth_backend/internal/models"
	"auth_backend/internal/token"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	ProviderID string `json:"provider_id" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

type Response struct {
	resp.Response
	User   models.PublicUser `json:"user"`
	Tokens token.Pair        `json:"tokens"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	provider models.Provider,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.oauthlogin.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("provider", string(provider)),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, tokens, err := authService.OAuthLogin(ctx, auth.OAuthProfile{
			Provider:   provider,
			ProviderID: req.ProviderID,
			Email:      req.Email,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
		})
		if err != nil {
			if errors.Is(err, credentials.ErrWrongProvider) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error(err.Error()))

				return
			}

			log.Error("failed to login oauth user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("OAuth user logged in", slog.String("user_id", user.ID))

		render.JSON(w, r, Response{
			Response: resp.OK(),
			User:     user.Public(),
			Tokens:   tokens,
		})
	}
}
