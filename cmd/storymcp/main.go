// Package main serves the story engine as MCP tools over stdio.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	storymcpcmd "github.com/louisbranch/mythos/internal/cmd/storymcp"
)

func main() {
	cfg, err := storymcpcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	// stdout carries the protocol.
	log.SetOutput(os.Stderr)
	log.SetPrefix("[STORYMCP] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := storymcpcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
