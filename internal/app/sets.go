package app

import (
	"github.com/google/wire"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/tradereplay/internal/handler"
	"github.com/navid-fn/tradereplay/internal/replay"
	"github.com/navid-fn/tradereplay/internal/service"
)

// ServerSet builds a Server from the environment.
var ServerSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	wire.Bind(new(logrus.FieldLogger), new(*logrus.Logger)),
	ProvideDB,
	ProvideBarStore,
	ProvideSessionRepository,
	ProvideFetcher,
	ProvideCalendar,
	ProvideSliceCache,
	ProvidePreparer,
	wire.Bind(new(service.ReplaySource), new(*replay.Preparer)),
	ProvidePublisher,
	ProvideService,
	ProvideStreamer,
	handler.NewMarketHandler,
	handler.NewSessionHandler,
	handler.NewTradeHandler,
	ProvideRouter,
	wire.Struct(new(Server), "Config", "Router", "Logger"),
)
