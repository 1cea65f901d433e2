package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kohakuhub/hub/internal/auth"
)

const localsIdentity = "identity"
const localsExternalTokens = "external_tokens"

// WithAuth resolves the caller's identity from the composite
// Authorization header (spec §4.C) — an API token, optionally followed
// by per-source fallback-proxy tokens — and stores both on the fiber
// context for downstream handlers. An unrecognized or absent header
// leaves the request anonymous; handlers that require a credential
// check identity.Anonymous() themselves and return apperr.Unauthorized.
func (h *Handlers) WithAuth(c *fiber.Ctx) error {
	bearer, external := auth.ParseAuthorization(c.Get("Authorization"))

	identity := auth.Identity{}

	if bearer != nil {
		tok, err := h.Store.Sessions().FindTokenByHash(c.Context(), auth.HashToken(*bearer))
		if err == nil {
			if user, uerr := h.Store.Users().FindByID(c.Context(), tok.UserID); uerr == nil {
				identity.User = user
				_ = h.Store.Sessions().TouchToken(c.Context(), tok.ID)
			}
		}
	}

	if identity.Anonymous() {
		if sessionID := c.Cookies("session"); sessionID != "" {
			if sess, err := h.Store.Sessions().FindSession(c.Context(), sessionID); err == nil {
				if user, uerr := h.Store.Users().FindByID(c.Context(), sess.UserID); uerr == nil {
					identity.User = user
				}
			}
		}
	}

	c.Locals(localsIdentity, identity)
	c.Locals(localsExternalTokens, external)

	return c.Next()
}

func identityFrom(c *fiber.Ctx) auth.Identity {
	if id, ok := c.Locals(localsIdentity).(auth.Identity); ok {
		return id
	}

	return auth.Identity{}
}

func externalTokensFrom(c *fiber.Ctx) auth.ExternalTokens {
	if tok, ok := c.Locals(localsExternalTokens).(auth.ExternalTokens); ok {
		return tok
	}

	return nil
}
