package mover

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"

	"shelver/internal/services"
)

// transientErrnos are conditions expected to clear on their own: busy or
// locked files, interrupted calls, and destination names claimed between the
// collision check and the rename.
var transientErrnos = []unix.Errno{
	unix.EBUSY,
	unix.EAGAIN,
	unix.ETXTBSY,
	unix.EINTR,
	unix.EEXIST,
	unix.ETIMEDOUT,
}

// Classify tags err as transient or permanent. Errors that already carry a
// services marker keep it.
func Classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, services.ErrTransient),
		errors.Is(err, services.ErrPermanent),
		errors.Is(err, services.ErrNameSpaceExhausted),
		errors.Is(err, services.ErrNotAccessible):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTransient, "mover", operation, "", err)
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		for _, candidate := range transientErrnos {
			if errno == candidate {
				return services.Wrap(services.ErrTransient, "mover", operation, "", err)
			}
		}
	}
	return services.Wrap(services.ErrPermanent, "mover", operation, "", err)
}
