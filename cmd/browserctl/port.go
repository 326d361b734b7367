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

func getCmdPort(gs *globalState) *cobra.Command {
	var asURL bool

	portCmd := &cobra.Command{
		Use:   "port",
		Short: "Print the CDP port of this agent",
		Long: `Print the CDP port of this agent, read from CDP_PORT (default 9222).

  Use --url to print the endpoint URL instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asURL {
				fmt.Fprintln(gs.stdOut, gs.port.URL())
				return nil
			}
			fmt.Fprintln(gs.stdOut, gs.port.Port())
			return nil
		},
	}
	portCmd.Flags().BoolVar(&asURL, "url", false, "print http://localhost:PORT")

	return portCmd
}
