// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func WatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "watch <config-file>",
		Short:        "Watch a configuration document and re-apply it on every change",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			if stat, err := os.Stat(path); err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("no such file or directory: '%s'", path)
				}
				return fmt.Errorf("can't stat file '%s', reason: %w", path, err)
			} else if stat.IsDir() {
				return fmt.Errorf("can't watch directory: '%s'", path)
			}

			opts, err := applyOptionsFromFlags(cmd)
			if err != nil {
				return err
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()

			// Watch the directory, not the file: editors that write
			// via rename would otherwise detach the watch.
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				return err
			}

			applyOnce := func() {
				if err := applyConfigFile(ctx, path, opts); err != nil {
					fmt.Println("Error:", err)
				}
			}

			applyOnce()

			// The ticker debounces bursts of events from one save.
			fired := false
			debounce := 100 * time.Millisecond
			ticker := time.NewTicker(debounce)
			defer ticker.Stop()
			for {
				select {
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != filepath.Clean(path) {
						continue
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
						continue
					}
					if !fired {
						fmt.Printf("File modified '%s'\n", event.Name)
						applyOnce()
						fired = true
						ticker.Reset(debounce)
					}
				case <-ticker.C:
					fired = false
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					fmt.Println("Watch error:", err)
				case <-ctx.Done():
					return nil
				}
			}
		},
	}

	addApplyFlags(cmd)
	return cmd
}
