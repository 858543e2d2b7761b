package supportbot

import "github.com/pkg/errors"

var (
	// ErrValidation marks bad ticket or tool arguments.
	ErrValidation = errors.New("validation failed")
	// ErrCustomerNotFound is returned when a customer id does not resolve.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrTicketNotFound is returned when a ticket uid does not resolve.
	ErrTicketNotFound = errors.New("ticket not found")
)
