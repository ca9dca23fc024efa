// Command snapctl is the operator CLI for plans, the job queue, the reaper,
// generation credentials and API tokens.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(&env{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "snapctl:", err)
		os.Exit(1)
	}
}
