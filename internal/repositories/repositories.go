package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a row does not exist, so callers can branch on
// "missing" without treating it as a transport failure.
var ErrNotFound = errors.New("not found")

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
