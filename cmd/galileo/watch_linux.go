// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"os"
	"time"

	"github.com/maruel/interrupt"
	fsnotify "gopkg.in/fsnotify.v1"
)

// pollInterval is how often a missing file is looked for.
var pollInterval = 500 * time.Millisecond

// watchFile returns once fileName is modified or on Ctrl-C.
//
// When fileName is missing or replaced, it returns once the file exists
// again.
func watchFile(fileName string) error {
	fi, err := os.Stat(fileName)
	if err != nil {
		waitFile(fileName)
		return nil
	}
	mod0 := fi.ModTime()
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err = watcher.Add(fileName); err != nil {
		return err
	}
	for {
		select {
		case <-interrupt.Channel:
			return nil
		case err = <-watcher.Errors:
			return err
		case e := <-watcher.Events:
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				// Editors replace the file.
				waitFile(fileName)
				return nil
			}
			if fi, err = os.Stat(fileName); os.IsNotExist(err) {
				waitFile(fileName)
				return nil
			} else if err != nil || !fi.ModTime().Equal(mod0) {
				return err
			}
		}
	}
}

// waitFile polls until fileName exists. It returns false on Ctrl-C.
func waitFile(fileName string) bool {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		if _, err := os.Stat(fileName); err == nil {
			return true
		}
		select {
		case <-interrupt.Channel:
			return false
		case <-t.C:
		}
	}
}
