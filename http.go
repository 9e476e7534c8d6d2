package accounts

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const (
	// ContextUserKey is where the auth middleware parks the verified user.
	ContextUserKey = "auth_user"
	// ContextTokenKey holds the presenting bearer token plaintext, needed
	// by operations that revoke every session except the current one.
	ContextTokenKey = "auth_token"
)

// AuthMiddleware verifies the bearer token on every request it wraps
// and loads the owning user into the request locals.
type AuthMiddleware struct {
	Tokens TokenAuthority
	Logger Logger
	// Optional lets a route proceed anonymously when no valid token
	// is presented; UserFromContext then returns nil.
	Optional bool
}

func NewAuthMiddleware(tokens TokenAuthority) *AuthMiddleware {
	return &AuthMiddleware{
		Tokens: tokens,
		Logger: defLogger{},
	}
}

// RequireAuth rejects requests without a live bearer token.
func (m *AuthMiddleware) RequireAuth() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			token := BearerToken(ctx)
			user, err := m.Tokens.Verify(ctx.Context(), token)
			if err != nil {
				if m.Optional {
					return next(ctx)
				}
				return RespondError(ctx, ErrInvalidAPIToken)
			}

			ctx.Locals(ContextUserKey, user)
			ctx.Locals(ContextTokenKey, token)
			return next(ctx)
		}
	}
}

// RequireAdmin stacks on RequireAuth and rejects non admin callers.
func (m *AuthMiddleware) RequireAdmin() router.MiddlewareFunc {
	auth := m.RequireAuth()
	return func(next router.HandlerFunc) router.HandlerFunc {
		return auth(func(ctx router.Context) error {
			user := UserFromContext(ctx)
			if user == nil || !user.IsAdmin() {
				return RespondError(ctx, ErrResourceNotAllowed)
			}
			return next(ctx)
		})
	}
}

// BearerToken pulls the token out of the Authorization header.
func BearerToken(ctx router.Context) string {
	header := ctx.GetString(router.HeaderAuthorization, "")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// UserFromContext returns the user the middleware authenticated, or
// nil on optional routes without credentials.
func UserFromContext(ctx router.Context) *User {
	raw := ctx.Locals(ContextUserKey)
	if raw == nil {
		return nil
	}
	user, _ := raw.(*User)
	return user
}

// TokenFromContext returns the plaintext bearer token of this request.
func TokenFromContext(ctx router.Context) string {
	raw := ctx.Locals(ContextTokenKey)
	if raw == nil {
		return ""
	}
	token, _ := raw.(string)
	return token
}

// RespondError writes the JSON error envelope: the text code clients
// branch on, the message, and any metadata the error carries.
func RespondError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	body := map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    richErr.TextCode,
			"message": richErr.Message,
		},
	}
	if len(richErr.Metadata) > 0 {
		body["error"].(map[string]any)["metadata"] = richErr.Metadata
	}

	return ctx.JSON(status, body)
}

// RespondValidation maps ozzo validation errors onto the field level
// envelope so clients see one failure shape for payload and store
// level validation alike.
func RespondValidation(ctx router.Context, err error) error {
	fields := FormatValidationErrorToMap(err)

	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    TextCodeValidationFailure,
			"message": "validation failure",
			"fields":  fields,
		},
	})
}

// FormatValidationErrorToMap flattens ozzo errors into field->rule text.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["payload"] = err.Error()
	return out
}

func debugDump(logger Logger, label string, v any) {
	logger.Debug("%s %s", label, print.MaybePrettyJSON(v))
}
