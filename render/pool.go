// Copyright (C) 2024 The Firtree Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package render

import "runtime"

// tileJob is one work item dispatched to the worker pool: a
// contiguous horizontal strip of the output (spec.md §4.G step 3).
type tileJob struct {
	y0, rows int
}

// runTiles submits one job per tile to a pool of parallel workers
// sized to the number of CPU cores (or Options.Workers, if set), runs
// do on each, and waits for every job to finish before returning —
// mirroring the shape of gapid's own task.Pool (a fixed-size pool of
// goroutines draining a job channel) without pulling in its general
// Task/Executor/Signal machinery, which this engine has no use for
// beyond the one render loop below. A job that panics is recovered
// and reported as ErrWorkerDispatch rather than taking the whole
// render down (spec.md §4.G "a worker panicking is treated as
// fatal... must recover by draining and reporting").
func runTiles(jobs []tileJob, workers int, do func(tileJob) error) error {
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers < 1 {
		return nil
	}

	queue := make(chan tileJob, len(jobs))
	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	results := make(chan error, len(jobs))
	for i := 0; i < workers; i++ {
		go func() {
			for j := range queue {
				results <- runTileJob(j, do)
			}
		}()
	}

	var first error
	for i := 0; i < len(jobs); i++ {
		if err := <-results; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// runTileJob recovers a panic from do, converting it into an error so
// one bad tile cannot crash the whole render.
func runTileJob(j tileJob, do func(tileJob) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(ErrWorkerDispatch, panicError{r})
		}
	}()
	return do(j)
}

type panicError struct{ v interface{} }

func (p panicError) Error() string { return "worker panic: " + toString(p.v) }

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if e, ok := v.(error); ok {
		return e.Error()
	}
	return "non-string panic value"
}

// defaultWorkers returns the worker pool size an Engine uses when
// Options.Workers is left at zero.
func defaultWorkers() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
