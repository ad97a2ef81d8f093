package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

const defaultConfigTemplate = `version: 1

node:
  address: "127.0.0.1:9000"

peer_sampling:
  push: true
  pull: true
  sampling_period: 60s
  sampling_deviation: 0s
  view_size: 30
  healing_factor: 3
  swapping_factor: 12

gossip:
  push: true
  pull: true
  gossip_period: 1s
  gossip_deviation: 0s
  expiration:
    policy: none

discovery:
  bootstrap_peers: []
  mdns_enabled: true
  service_name: "_gossipd._tcp"

telemetry:
  metrics:
    enabled: false
    listen_address: "127.0.0.1:9091"

monitor:
  enabled: false
  url: ""
  timeout: 5s
`

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "gossipd.yaml", "path to write the configuration file")
	force := fs.Bool("force", false, "overwrite an existing file")
	fs.Parse(args)

	if _, err := os.Stat(*configPath); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "%s already exists; use --force to overwrite\n", *configPath)
		osExit(1)
		return
	}

	if dir := filepath.Dir(*configPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "create config directory: %v\n", err)
			osExit(1)
			return
		}
	}

	if err := os.WriteFile(*configPath, []byte(defaultConfigTemplate), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "write config: %v\n", err)
		osExit(1)
		return
	}

	fmt.Printf("wrote %s\n", *configPath)
}
