package engine

import "time"

var processStart = time.Now()

// nowSeconds returns a monotonic seconds timestamp anchored at process
// start, matching the unit ComputeTargetDelay/FrameDuration work in.
func nowSeconds() float64 {
	return time.Since(processStart).Seconds()
}
