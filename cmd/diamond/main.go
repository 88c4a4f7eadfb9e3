// Command diamond runs and inspects EIP-2535 diamonds.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/diamond/internal/cli"
)

func main() {
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
