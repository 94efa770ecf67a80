package bank

import (
	"context"
	"errors"
)

type Classification int

const (
	Unclassified Classification = iota
	Authorized
	NotAuthorized
	TransportFailure
	MalformedResponse
)

func (c Classification) String() string {
	switch c {
	case Authorized:
		return "authorized"
	case NotAuthorized:
		return "not_authorized"
	case TransportFailure:
		return "transport_failure"
	case MalformedResponse:
		return "malformed_response"
	default:
		return "unclassified"
	}
}

// Classify maps the result of Authorize to exactly one classification.
func Classify(resp *AuthorizationResponse, err error) Classification {
	if err == nil {
		if resp == nil {
			return MalformedResponse
		}
		if resp.Authorized {
			return Authorized
		}
		return NotAuthorized
	}

	switch {
	case errors.Is(err, ErrMalformedResponse):
		return MalformedResponse
	case errors.Is(err, ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return TransportFailure
	default:
		return Unclassified
	}
}
