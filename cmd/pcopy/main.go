package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/postphotos/purrfectcopy/internal/cli"
)

func main() {
	err := cli.Run(os.Args[1:])
	if err != nil {
		var ee *cli.ExitError
		if !errors.As(err, &ee) || ee.Err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
	os.Exit(cli.ExitCode(err))
}
