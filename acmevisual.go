package main

import (
	_ "embed"
	"fmt"
	"os"

	cli "github.com/neboloop/acmevisual/cmd/acmevisual"
	"github.com/neboloop/acmevisual/internal/config"

	"github.com/joho/godotenv"
)

//go:embed etc/acmevisual.yaml
var embeddedConfig []byte

func main() {
	// The process exits 0 whatever happens, panics included
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n", r)
		}
		os.Exit(0)
	}()

	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Load embedded config (defaults)
	c, err := config.LoadFromBytes(embeddedConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load embedded config: %v\n", err)
		return
	}

	// Pass config to CLI and execute. Failures are reported, never turned into an exit code.
	if err := cli.Execute(&c, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
