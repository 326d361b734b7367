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

	"github.com/agenttools/browserctl/common"

	"github.com/spf13/cobra"
)

func getCmdScreenshot(gs *globalState) *cobra.Command {
	var desktop, mobile bool

	screenshotCmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Capture the last opened tab as a PNG",
		Long: `Capture the last opened tab as a PNG in the temporary directory and
print the file path.

The viewport is resized to 1920x1080 (--desktop, the default) or 400x900
(--mobile) first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if desktop && mobile {
				return errors.New("--desktop and --mobile cannot be used together")
			}
			vp := common.DesktopViewport
			if mobile {
				vp = common.MobileViewport
			}

			page, err := gs.attachPage(gs.ctx)
			if err != nil {
				return err
			}
			defer page.Close() //nolint:errcheck

			path, err := page.Screenshot(gs.ctx, vp)
			if err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Fprintln(gs.stdOut, path)

			return nil
		},
	}
	flags := screenshotCmd.Flags()
	flags.BoolVar(&desktop, "desktop", false, "use a 1920x1080 viewport (default)")
	flags.BoolVar(&mobile, "mobile", false, "use a 400x900 viewport")

	return screenshotCmd
}
