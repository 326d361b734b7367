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
	"strings"

	"github.com/spf13/cobra"
)

func getCmdEval(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "eval <code>",
		Short: "Evaluate JavaScript in the last opened tab",
		Long: `Evaluate JavaScript in the last opened tab and print the result.

The code is the return value of an async function, so promises are awaited
and await can be used. Arrays print as blocks of "key: value" lines, objects
as "key: value" lines and anything else as is.`,
		Example: `  browserctl eval "document.title"
  browserctl eval "document.querySelectorAll('a').length"
  browserctl eval "[...document.links].map(a => ({text: a.textContent, href: a.href}))"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errors.New("no code to evaluate")
			}

			page, err := gs.attachPage(gs.ctx)
			if err != nil {
				return err
			}
			defer page.Close() //nolint:errcheck

			return page.Evaluate(gs.ctx, strings.Join(args, " "), gs.stdOut) //nolint:wrapcheck
		},
	}
}
