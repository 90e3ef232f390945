package main

import (
	"fmt"
	"os"
	"runtime/pprof"
)

// startCPUProfile starts CPU profiling into path. The returned function
// stops profiling and closes the file; it is a no-op when path is empty.
func startCPUProfile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	cpuFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		cpuFile.Close()
		return nil, fmt.Errorf("starting CPU profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		cpuFile.Close()
	}, nil
}

// writeHeapProfile writes a heap profile to path, if set
func writeHeapProfile(path string) error {
	if path == "" {
		return nil
	}
	memFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating memory profile: %w", err)
	}
	defer memFile.Close()

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	return nil
}
