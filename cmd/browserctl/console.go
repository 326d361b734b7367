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
	"fmt"

	"github.com/spf13/cobra"
)

func getCmdConsole(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Stream the console output of the last opened tab",
		Long: `Stream the console output of the last opened tab.

Console messages, uncaught page errors and failed requests are printed
until the command is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := gs.attachPage(gs.ctx)
			if err != nil {
				return err
			}
			defer page.Close() //nolint:errcheck

			ctx, stop := gs.notifyContext(gs.ctx)
			defer stop()

			if err := page.StreamConsole(ctx, gs.stdOut); err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Fprint(gs.stdOut, "\n\n👋 Stopped capturing console logs\n")

			return nil
		},
	}
}
