package main

import (
	"fmt"
	"os"

	"github.com/benvon/tag-a-log/cmd/admin/commands"
)

func main() {
	if err := commands.NewRootCmd(commands.DefaultStoreOpener).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
