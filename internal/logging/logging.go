// Package logging owns the process-wide logger. Initialization happens at
// most once; before Init, L returns a nop logger so library code can log
// unconditionally.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.Mutex
	once   sync.Once
	logger = zap.NewNop()
)

// Init builds the process logger. Only the first call has any effect.
// With verbose true, debug-level development output is enabled.
func Init(verbose bool) error {
	var err error
	once.Do(func() {
		var l *zap.Logger
		if verbose {
			l, err = zap.NewDevelopment()
		} else {
			l, err = zap.NewProduction()
		}
		if err != nil {
			return
		}
		mu.Lock()
		logger = l
		mu.Unlock()
	})
	return err
}

// L returns the process logger.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}
