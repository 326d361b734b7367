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
	"errors"
	"fmt"
	"runtime"

	"github.com/agenttools/browserctl/api"
	"github.com/agenttools/browserctl/chromium"
	"github.com/agenttools/browserctl/errext"
	"github.com/agenttools/browserctl/storage"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func getCmdStart(gs *globalState) *cobra.Command {
	var seeded bool

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a browser with remote debugging on the CDP port",
		Long: `Start a browser with remote debugging on the CDP port.

A browser already running the same executable is stopped first. The browser
keeps running after this command exits.

  Use --profile to copy your own Chrome profile (cookies, logins) into the
  browser profile before starting it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			launcher, err := gs.newLauncher(gs)
			if err != nil {
				return err
			}

			inst, err := launcher.Launch(gs.ctx, seeded)
			if errors.Is(err, chromium.ErrNotReady) {
				fmt.Fprintln(gs.stdOut, gs.printer(color.FgRed).Sprint("✗ Failed to connect to Chrome"))
				return errext.WithExitCodeIfNone(err, errext.BrowserNotReady)
			}
			if err != nil {
				return err //nolint:wrapcheck
			}

			msg := fmt.Sprintf("✓ Chrome started on :%d", inst.Port)
			if inst.Seeded {
				msg += " with your profile"
			}
			fmt.Fprintln(gs.stdOut, gs.printer(color.FgGreen).Sprint(msg))
			gs.logger.Debugf("start", "pid:%d browser:%q ws:%q profile:%q", inst.Pid, inst.Browser, inst.WsURL, inst.UserDataDir)

			return nil
		},
	}
	startCmd.Flags().BoolVar(&seeded, "profile", false, "copy your Chrome profile into the browser profile")

	return startCmd
}

func newLauncher(gs *globalState) (api.Launcher, error) {
	cacheDir := gs.conf.CacheDir.String
	if !gs.conf.CacheDir.Valid {
		dir, err := storage.DefaultCacheDir(gs.lookup)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		cacheDir = dir
	}

	sourceDir := gs.conf.ProfileSource.String
	if !gs.conf.ProfileSource.Valid {
		dir, err := storage.DefaultSourceDir(runtime.GOOS, gs.lookup)
		if err != nil {
			gs.logger.Debugf("start", "no default source profile: %v", err)
		}
		sourceDir = dir
	}

	opts := &chromium.LaunchOptions{
		ExecutablePath: gs.conf.ExecutablePath.String,
		Headless:       gs.conf.Headless.Bool,
	}
	profile := storage.NewProfile(afero.NewOsFs(), cacheDir, sourceDir, gs.logger)

	return chromium.NewLauncher(gs.port, opts, profile, gs.logger), nil
}
