package clock

import "time"

// NowFunc returns the current wall-clock time. Tests override it to make
// bid timestamps deterministic.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }
