// Package catalog is the read-only lookup boundary used to denormalize
// display fields into booking records. It never gates seat transitions.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	postgresrepo "github.com/screenbook/screenbook/internal/repository/postgres"
)

type Metadata struct {
	MovieTitle string
	CinemaName string
	RoomName   string
	StartsAt   time.Time
}

type Lookup interface {
	Screening(ctx context.Context, screeningID uuid.UUID) (Metadata, error)
}

// StoreLookup resolves metadata from the screenings table, where the display
// fields were denormalized at creation time.
type StoreLookup struct {
	query *postgresrepo.QueryRepo
}

func NewStoreLookup(query *postgresrepo.QueryRepo) *StoreLookup {
	return &StoreLookup{query: query}
}

func (l *StoreLookup) Screening(ctx context.Context, screeningID uuid.UUID) (Metadata, error) {
	const op = "catalog.StoreLookup.Screening"

	sc, err := l.query.GetScreening(ctx, screeningID)
	if err != nil {
		return Metadata{}, fmt.Errorf("%s:%w", op, err)
	}

	return Metadata{
		MovieTitle: sc.MovieTitle,
		CinemaName: sc.CinemaName,
		RoomName:   sc.RoomName,
		StartsAt:   sc.StartsAt,
	}, nil
}
