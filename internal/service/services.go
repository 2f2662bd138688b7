// Package service wires the individual services into one bundle the
// transport layer consumes.
package service

import (
	"log/slog"

	"github.com/screenbook/screenbook/internal/catalog"
	"github.com/screenbook/screenbook/internal/notify"
	"github.com/screenbook/screenbook/internal/payment"
	postgresrepo "github.com/screenbook/screenbook/internal/repository/postgres"
	redisrepo "github.com/screenbook/screenbook/internal/repository/redis"
	"github.com/screenbook/screenbook/internal/service/admin"
	"github.com/screenbook/screenbook/internal/service/booking"
	"github.com/screenbook/screenbook/internal/service/query"
	"github.com/screenbook/screenbook/internal/service/reservation"
)

type Config struct {
	Reservation reservation.Config
	Query       query.Config
}

type Services struct {
	Reservation *reservation.Service
	Booking     *booking.Service
	Query       *query.Service
	Admin       *admin.Service
}

type Deps struct {
	Store    *postgresrepo.Store
	Cache    *redisrepo.Cache
	PubSub   reservation.Publisher
	Limiter  *redisrepo.SlidingWindowLimiter
	Charger  payment.Charger
	Notifier notify.Notifier
	Logger   *slog.Logger
}

func New(d Deps, cfg Config) *Services {
	res := reservation.New(
		d.Store.Reservations(),
		d.Cache,
		d.PubSub,
		d.Limiter,
		d.Logger,
		cfg.Reservation,
	)

	qry := query.New(d.Store.Query(), d.Cache, d.Logger, cfg.Query)

	bkg := booking.New(
		res,
		d.Store.Bookings(),
		d.Charger,
		catalog.NewStoreLookup(d.Store.Query()),
		d.Notifier,
		d.Logger,
	)

	adm := admin.New(d.Store.Screenings(), d.Cache, d.PubSub, d.Logger)

	return &Services{
		Reservation: res,
		Booking:     bkg,
		Query:       qry,
		Admin:       adm,
	}
}
