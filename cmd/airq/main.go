// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/airq-project/airq/cmd/airq/commands"
)

var (
	version   = "v0.3.1"
	buildDate = "unknown"
)

func main() {
	// Ctrl-C cancels the root context so an in-flight upload or serial
	// dialogue can shut down and release its handles before we exit.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	info := commands.Info{
		Version: version,
		Date:    buildDate,
	}
	cmd := commands.AirqCmd(info)
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
