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

package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	cdpr "github.com/chromedp/cdproto/runtime"
	"github.com/tidwall/gjson"
)

// asyncExpression wraps code so that it runs as the body of an async
// function returning (code). Promises are awaited by the caller.
func asyncExpression(code string) string {
	body, _ := json.Marshal("return (" + code + ")") // marshalling a string cannot fail
	return fmt.Sprintf(
		"(() => { const AsyncFunction = (async () => {}).constructor; return new AsyncFunction(%s)(); })()",
		body,
	)
}

// Evaluate evaluates code in the page and writes the result to w:
// arrays as blocks of "key: value" lines separated by blank lines,
// objects as "key: value" lines and anything else as is.
func (p *Page) Evaluate(ctx context.Context, code string, w io.Writer) error {
	p.logger.Debugf("Page:evaluate", "sid:%v code:%q", p.sessionID, code)

	res, exc, err := p.client.Runtime.Evaluate(p.withSession(ctx), asyncExpression(code))
	if err != nil {
		return err //nolint:wrapcheck
	}
	if exc != nil {
		return fmt.Errorf("evaluation failed: %s", exceptionMessage(exc))
	}

	_, err = io.WriteString(w, FormatResult(res))
	return err //nolint:wrapcheck
}

// exceptionMessage returns the message of a thrown exception, e.g.
// "ReferenceError: foo is not defined".
func exceptionMessage(exc *cdpr.ExceptionDetails) string {
	if exc == nil {
		return "unknown exception"
	}
	if exc.Exception != nil {
		if d := exc.Exception.Description; d != "" {
			return firstLine(d)
		}
		if len(exc.Exception.Value) > 0 {
			return jsString(gjson.ParseBytes(exc.Exception.Value))
		}
	}
	return exc.Text
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// FormatResult renders an evaluation result returned by value.
func FormatResult(res *cdpr.RemoteObject) string {
	if res == nil || res.Type == cdpr.TypeUndefined {
		return "undefined\n"
	}
	if res.UnserializableValue != "" {
		return string(res.UnserializableValue) + "\n"
	}
	if len(res.Value) == 0 {
		// Functions and symbols have no JSON value.
		return res.Description + "\n"
	}

	var sb strings.Builder
	v := gjson.ParseBytes(res.Value)
	switch {
	case v.IsArray():
		for i, elem := range v.Array() {
			if i > 0 {
				sb.WriteString("\n")
			}
			writeEntries(&sb, elem)
		}
	case v.IsObject():
		writeEntries(&sb, v)
	default:
		sb.WriteString(jsString(v))
		sb.WriteString("\n")
	}

	return sb.String()
}

// writeEntries writes a "key: value" line per own enumerable property of v.
// Strings enumerate their characters, other scalars have no entries.
func writeEntries(sb *strings.Builder, v gjson.Result) {
	switch {
	case v.IsObject():
		v.ForEach(func(key, value gjson.Result) bool {
			fmt.Fprintf(sb, "%s: %s\n", key.String(), jsString(value))
			return true
		})
	case v.IsArray():
		for i, elem := range v.Array() {
			fmt.Fprintf(sb, "%d: %s\n", i, jsString(elem))
		}
	case v.Type == gjson.String:
		for i, r := range []rune(v.String()) {
			fmt.Fprintf(sb, "%d: %c\n", i, r)
		}
	}
}

// jsString converts v to a string the way a JavaScript template literal
// does.
func jsString(v gjson.Result) string {
	switch {
	case v.IsObject():
		return "[object Object]"
	case v.IsArray():
		elems := v.Array()
		parts := make([]string, len(elems))
		for i, elem := range elems {
			if elem.Type != gjson.Null {
				parts[i] = jsString(elem)
			}
		}
		return strings.Join(parts, ",")
	case v.Type == gjson.String:
		return v.String()
	case v.Type == gjson.Null:
		return "null"
	default:
		return v.Raw
	}
}
