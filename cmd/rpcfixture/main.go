package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tomasbasham/rpcfixture/cmd/rpcfixture/cmd"
)

func main() {
	if err := cmd.Serve(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
