package conversation

import (
	"errors"

	"conversation-service/internal/repositories"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("not a participant of this thread")
	ErrInvalidArgument = errors.New("invalid argument")
)

// translate maps storage errors onto the gateway's sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrThreadNotFound),
		errors.Is(err, repositories.ErrJobNotFound),
		errors.Is(err, repositories.ErrProfileNotFound):
		return ErrNotFound
	case errors.Is(err, repositories.ErrNotParticipant):
		return ErrUnauthorized
	case errors.Is(err, repositories.ErrSelfThread):
		return ErrInvalidArgument
	default:
		return err
	}
}
