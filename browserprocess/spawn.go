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

// Package browserprocess starts browser processes that outlive browserctl.
package browserprocess

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/agenttools/browserctl/log"
	"github.com/agenttools/browserctl/osext"
)

// Process describes a spawned browser process. It carries no handle: once
// spawned, the process is not owned, monitored, or stopped by browserctl.
type Process struct {
	Pid  int
	Path string
	Args []string
}

// Spawner starts a browser executable.
type Spawner interface {
	Spawn(path string, args []string) (*Process, error)
}

// DetachedSpawner starts processes detached from the current one, with no
// standard streams attached, so that exiting browserctl leaves them running.
type DetachedSpawner struct {
	logger *log.Logger
}

var _ Spawner = &DetachedSpawner{}

// NewDetachedSpawner returns a new DetachedSpawner.
func NewDetachedSpawner(logger *log.Logger) *DetachedSpawner {
	return &DetachedSpawner{logger: logger}
}

// Spawn starts path with args and releases the process right away.
func (s *DetachedSpawner) Spawn(path string, args []string) (*Process, error) {
	cmd := exec.Command(path, args...) //nolint:gosec
	osext.Detach(cmd)

	err := cmd.Start()
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", path, err)
	}

	p := &Process{
		Pid:  cmd.Process.Pid,
		Path: path,
		Args: args,
	}
	s.logger.Debugf("BrowserProcess:spawn", "pid:%d path:%q args:%q", p.Pid, path, args)

	if err := cmd.Process.Release(); err != nil {
		s.logger.Debugf("BrowserProcess:spawn", "releasing pid %d: %v", p.Pid, err)
	}

	return p, nil
}
