package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type Location struct {
	bun.BaseModel `bun:"table:locations"`

	ID      int64  `bun:"id,pk,autoincrement"`
	Name    string `bun:"name,notnull"`
	Address string `bun:"address"`
}

type StaffMember struct {
	bun.BaseModel `bun:"table:staff"`

	ID         int64     `bun:"id,pk,autoincrement"`
	LocationID int64     `bun:"location_id,notnull"`
	Name       string    `bun:"name,notnull"`
	Active     bool      `bun:"active,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

func (s *StaffMember) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Service is a catalog entry offered at a location.
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID         int64   `bun:"id,pk,autoincrement"`
	LocationID int64   `bun:"location_id,notnull"`
	Name       string  `bun:"name,notnull"`
	Price      float64 `bun:"price,notnull"`
}
