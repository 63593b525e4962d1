package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const uniqueViolationCode pq.ErrorCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}
