package apperr

import "net/http"

// StatusCode maps any apperr type (or an unrecognized error) to the HTTP
// status the hub's HTTP surface should answer with. Mirrors the teacher's
// common/net/http.WithError type switch.
func StatusCode(err error) int {
	switch err.(type) {
	case NotFoundError:
		return http.StatusNotFound
	case ConflictError:
		return http.StatusConflict
	case ValidationError:
		return http.StatusBadRequest
	case UnauthorizedError:
		return http.StatusUnauthorized
	case ForbiddenError:
		return http.StatusForbidden
	case UnprocessableError:
		return http.StatusUnprocessableEntity
	case QuotaExceededError:
		return http.StatusRequestEntityTooLarge
	case InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Code extracts the wire X-Error-Code for err, falling back to a generic
// code derived from its HTTP class when the error did not set one.
func Code(err error) string {
	switch e := err.(type) {
	case NotFoundError:
		return orDefault(e.Code, "EntityNotFound")
	case ConflictError:
		return orDefault(e.Code, "EntityConflict")
	case ValidationError:
		return orDefault(e.Code, "ValidationError")
	case UnauthorizedError:
		return orDefault(e.Code, "Unauthorized")
	case ForbiddenError:
		return orDefault(e.Code, "Forbidden")
	case UnprocessableError:
		return orDefault(e.Code, "UnprocessableOperation")
	case QuotaExceededError:
		return "BadRequest"
	case InternalError:
		return orDefault(e.Code, "InternalServerError")
	default:
		return "InternalServerError"
	}
}

// Message extracts the wire X-Error-Message for err. Internal errors never
// surface their wrapped cause — only the caller-supplied Message.
func Message(err error) string {
	switch e := err.(type) {
	case NotFoundError:
		return e.Message
	case ConflictError:
		return e.Message
	case ValidationError:
		return e.Message
	case UnauthorizedError:
		return e.Message
	case ForbiddenError:
		return e.Message
	case UnprocessableError:
		return e.Message
	case QuotaExceededError:
		return e.Message
	case InternalError:
		return e.Message
	default:
		return "internal server error"
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}
