// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long a server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// Generation is the default cap on a single narrative generation call.
// Local models are slow; this is overridable through configuration.
const Generation = 30 * time.Second

// StoreOpen caps opening the database and applying migrations at startup.
const StoreOpen = 10 * time.Second

// HealthProbe caps a single health check round trip.
const HealthProbe = time.Second
