package entity

import (
	"time"

	"github.com/google/uuid"
)

// Base is embedded by soft-deletable rows
type Base struct {
	ID        uuid.UUID  `db:"id"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at"`
}

func newBase(now time.Time) Base {
	return Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch bumps UpdatedAt before a write
func (b *Base) Touch(now time.Time) {
	b.UpdatedAt = now
}

// BaseSimple is embedded by append-only rows
type BaseSimple struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}
