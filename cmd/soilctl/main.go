// soilctl is the command line client for soilwatchd.
//
// With a subcommand it runs that command and exits. Without one, and with
// a terminal on stdin, it starts an interactive shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/xtxerr/soilwatch/internal/client"
	"github.com/xtxerr/soilwatch/internal/loader"
)

func main() {
	if err := loader.LoadEnv(""); err != nil {
		fmt.Fprintf(os.Stderr, "soilctl: %v\n", err)
		os.Exit(1)
	}

	defaultURL := os.Getenv("SOILWATCH_URL")
	if defaultURL == "" {
		defaultURL = client.DefaultConfig().BaseURL
	}

	serverURL := flag.String("server", defaultURL, "server URL (or SOILWATCH_URL env)")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	retries := flag.Int("retries", 2, "retries of a failed read")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: soilctl [flags] [command [args]]\n\nflags:\n")
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output())
		printHelp(flag.CommandLine.Output())
	}
	flag.Parse()

	c := client.New(&client.Config{
		BaseURL:    *serverURL,
		Timeout:    *timeout,
		RetryCount: *retries,
	})

	if flag.NArg() > 0 {
		if err := execute(context.Background(), c, os.Stdout, flag.Args()); err != nil {
			fmt.Fprintf(os.Stderr, "soilctl: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		flag.Usage()
		os.Exit(2)
	}

	shell(c, os.Stdout)
}

// shell runs the interactive prompt until exit, quit or Ctrl-D.
func shell(c *client.Client, out io.Writer) {
	fmt.Fprintf(out, "soilctl connected to %s, type help or exit\n", c.BaseURL())

	p := prompt.New(
		func(line string) {
			if err := execute(context.Background(), c, out, strings.Fields(line)); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		},
		completer,
		prompt.OptionTitle("soilctl"),
		prompt.OptionPrefix("soilctl> "),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			in = strings.TrimSpace(in)
			return breakline && (in == "exit" || in == "quit")
		}),
	)
	p.Run()
}

// completer suggests command names for the first word.
func completer(d prompt.Document) []prompt.Suggest {
	if strings.Contains(d.TextBeforeCursor(), " ") {
		return nil
	}
	suggestions := []prompt.Suggest{
		{Text: "help", Description: "list commands"},
		{Text: "exit", Description: "leave the shell"},
	}
	for _, name := range commandNames() {
		suggestions = append(suggestions, prompt.Suggest{Text: name, Description: commands[name].help})
	}
	return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
}
