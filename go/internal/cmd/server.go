package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/escaperoom/go/internal/rpc"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{rpc.ErrorKindHeader},
	})

	// Register services
	registerServices(mux, services)

	// Websocket push
	services.Gateway.RegisterRoutes(mux)

	// Liveness of the store, outbox relay and NATS
	mux.Handle("/health", services.Health)

	// Wrap with CORS
	handler := c.Handler(mux)

	// No WriteTimeout: websocket connections are long lived.
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	services.Session.Register(mux)
	services.Players.Register(mux)
	services.Rooms.Register(mux)
}
