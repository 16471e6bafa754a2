// Package main wires a cobra.Command tree onto internal/database: every
// subcommand's RunE parses its flags and then calls a Database method or,
// for tree navigation and secret editing, works on the database's secret
// tree directly.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mpm/internal/config"
	"mpm/internal/crypto"
	"mpm/internal/database"
	"mpm/internal/uiface"
)

// app holds the one piece of state a whole mpm session shares: the loaded
// database, the resolved config and the console used for prompts.
type app struct {
	db     *database.Database
	cfg    config.Config
	cons   *uiface.Console
	log    *logrus.Logger
	v      *viper.Viper
	cp     *crypto.Provider
	quit   bool
	exitCd int
}

func newApp() *app {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	cp := crypto.New(log)
	return &app{
		db:   database.New(cp, log),
		cons: uiface.NewConsole(os.Stdin, os.Stdout, os.Stderr),
		log:  log,
		v:    config.New(),
		cp:   cp,
	}
}

func main() {
	a := newApp()
	root := a.newRootCmd()
	if err := root.Execute(); err != nil {
		a.cons.Errorf("%v\n", err)
		os.Exit(1)
	}

	if cfg, err := config.Resolve(a.v); err == nil {
		a.cfg = cfg
	} else {
		a.cons.Errorf("configuration error: %v\n", err)
		os.Exit(1)
	}

	a.repl()
	os.Exit(a.exitCd)
}

// repl reads one command line at a time and dispatches it through a fresh
// command tree, mirroring how the original interactive shell accepts one
// verb per line (pwd/cd/ls are inherently session state, not independent
// process invocations).
func (a *app) repl() {
	reader := bufio.NewReader(os.Stdin)
	for !a.quit {
		fmt.Fprint(os.Stdout, "mpm> ")
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return
		}
		if err != nil {
			a.cons.Errorf("%v\n", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		args, err := splitArgs(line)
		if err != nil {
			a.cons.Errorf("%v\n", err)
			continue
		}
		cmd := a.newSessionCmd()
		cmd.SetArgs(args)
		if err := cmd.Execute(); err != nil {
			a.cons.Errorf("%v\n", err)
		}
	}
}

// splitArgs does shell-like whitespace splitting with double-quote support,
// enough for nickname/title arguments containing spaces.
func splitArgs(line string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			if cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quote")
	}
	if cur.Len() > 0 {
		args = append(args, cur.String())
	}
	return args, nil
}

// newRootCmd builds the one-shot, pre-REPL command tree: it only exists to
// parse process-level flags (vault path, thresholds) into viper before the
// interactive loop starts.
func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mpm",
		Short:         "threshold-unlock secret manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}
	root.PersistentFlags().String("vault", "", "vault file path")
	root.PersistentFlags().Int("common-threshold", 0, "common tier threshold for a new vault")
	root.PersistentFlags().Int("secret-threshold", 0, "secret tier threshold for a new vault")
	_ = a.v.BindPFlag("vault", root.PersistentFlags().Lookup("vault"))
	_ = a.v.BindPFlag("common_threshold", root.PersistentFlags().Lookup("common-threshold"))
	_ = a.v.BindPFlag("secret_threshold", root.PersistentFlags().Lookup("secret-threshold"))
	return root
}
