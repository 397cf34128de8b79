//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/navid-fn/tradereplay/internal/app"
)

// InitializeServer builds the HTTP server via Wire.
// Caller must invoke the returned cleanup on shutdown.
func InitializeServer() (*app.Server, func(), error) {
	wire.Build(app.ServerSet)
	return nil, nil, nil
}
