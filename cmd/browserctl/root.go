/*
 *
 * browserctl - drive parallel browser instances over CDP
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/agenttools/browserctl/api"
	"github.com/agenttools/browserctl/cdp"
	"github.com/agenttools/browserctl/cdpport"
	"github.com/agenttools/browserctl/common"
	"github.com/agenttools/browserctl/env"
	"github.com/agenttools/browserctl/errext"
	"github.com/agenttools/browserctl/log"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	verbose bool
	noColor bool
}

// globalState holds everything the commands share, so that tests can
// swap the environment, the outputs and the browser facing parts.
type globalState struct {
	ctx context.Context

	stdOut, stdErr io.Writer
	logrus         *logrus.Logger
	logger         *log.Logger

	lookup     env.LookupFunc
	loadConfig func() (env.Config, error)
	conf       env.Config
	flags      globalFlags
	port       *cdpport.Resolver

	connectPage   func(ctx context.Context, baseURL string, logger *log.Logger) (api.Page, error)
	newLauncher   func(gs *globalState) (api.Launcher, error)
	notifyContext func(ctx context.Context) (context.Context, context.CancelFunc)
}

func newGlobalState(ctx context.Context) *globalState {
	l := &logrus.Logger{
		Out:       os.Stderr,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}
	logger := log.New(l)

	return &globalState{
		ctx:        ctx,
		stdOut:     os.Stdout,
		stdErr:     os.Stderr,
		logrus:     l,
		logger:     logger,
		lookup:     env.Lookup,
		loadConfig: env.LoadConfig,
		port:       cdpport.Default(logger),
		connectPage: func(ctx context.Context, baseURL string, logger *log.Logger) (api.Page, error) {
			p, err := common.ConnectPage(ctx, baseURL, logger)
			if err != nil {
				return nil, err //nolint:wrapcheck
			}
			return p, nil
		},
		newLauncher: newLauncher,
		notifyContext: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		},
	}
}

func newRootCommand(gs *globalState) *cobra.Command {
	root := &cobra.Command{
		Use:   "browserctl",
		Short: "Drive browser instances over the Chrome DevTools Protocol",
		Long: `Drive browser instances over the Chrome DevTools Protocol.

Each agent gets its own instance by setting CDP_PORT (default 9222).
Start one with "browserctl start", then inspect its last opened tab with
the console, eval and screenshot commands.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: gs.persistentPreRunE,
	}
	root.SetOut(gs.stdOut)
	root.SetErr(gs.stdErr)

	flags := root.PersistentFlags()
	flags.BoolVarP(&gs.flags.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&gs.flags.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		getCmdStart(gs),
		getCmdConsole(gs),
		getCmdEval(gs),
		getCmdScreenshot(gs),
		getCmdPort(gs),
	)

	return root
}

func (gs *globalState) persistentPreRunE(cmd *cobra.Command, args []string) error {
	conf, err := gs.loadConfig()
	if err != nil {
		return err
	}
	gs.conf = conf

	if conf.LogLevel.Valid {
		if err := gs.logger.SetLevel(conf.LogLevel.String); err != nil {
			return fmt.Errorf("invalid %s: %w", env.LogLevel, err)
		}
	}
	if gs.flags.verbose {
		gs.logrus.SetLevel(logrus.DebugLevel)
	}
	if err := gs.logger.SetCategoryFilter(conf.LogCategoryFilter.String); err != nil {
		return err //nolint:wrapcheck
	}
	if gs.flags.noColor {
		color.NoColor = true
	}

	return nil
}

// run executes the command line args and returns the exit code.
func (gs *globalState) run(args []string) int {
	root := newRootCommand(gs)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}

	fields := logrus.Fields{}
	var herr errext.HasHint
	if errors.As(err, &herr) {
		fields["hint"] = herr.Hint()
	}
	gs.logrus.WithFields(fields).Error(err)

	return int(errext.Code(err))
}

// attachPage connects to the last opened page of the browser on the
// resolved port.
func (gs *globalState) attachPage(ctx context.Context) (api.Page, error) {
	p, err := gs.connectPage(ctx, gs.port.URL(), gs.logger)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, common.ErrNoActivePage):
		return nil, errext.WithExitCodeIfNone(err, errext.NoActivePage)
	case errors.Is(err, cdp.ErrNoEndpoint):
		hint := fmt.Sprintf(
			"make sure a browser is running with remote debugging on port %d; start one with `browserctl start`",
			gs.port.Port(),
		)
		return nil, errext.WithExitCodeIfNone(errext.WithHint(err, hint), errext.NoEndpoint)
	default:
		return nil, err
	}
}

// printer returns a color printer for the command output, honoring
// --no-color.
func (gs *globalState) printer(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if gs.flags.noColor {
		c.DisableColor()
	}
	return c
}
