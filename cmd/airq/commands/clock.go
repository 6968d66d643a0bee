// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import "time"

// Clock abstracts wall-clock reads and sleeping so the serial reply window
// and the upload poll loop can be tested without real waiting.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
