// recctl is a command-line client for the recorder aggregator. It shares the
// dashboard core with the server: the same request client, error
// classification, session handling and room normalization.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run executes one recctl invocation. Errors are reported on stderr before
// they are returned.
func run(args []string, stdout, stderr io.Writer) error {
	a, rest, err := newApp(args, stdout, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return err
	}
	err = a.dispatch(rest)
	a.flushNotifications()
	if err != nil && !a.reported() {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return err
}
