package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleState is returned by conditional updates that matched the record
// but found it outside the state the transition starts from.
var ErrStaleState = errors.New("record is not in the expected state")

// conn returns tx when the caller runs inside a transaction.
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

func newID() string {
	return uuid.NewString()
}
