package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/pkg/config"
)

func TestSchedulerConfigOverridesDefaults(t *testing.T) {
	cfg := schedulerConfig(config.SchedulerConfig{
		PeriodsPerDay:   8,
		LabBlocks:       [][]int{{6, 7, 8}},
		Pillars:         []string{"Library"},
		FacultyFallback: "none",
	})
	assert.Equal(t, 8, cfg.PeriodsPerDay)
	assert.Equal(t, [][]int{{6, 7, 8}}, cfg.LabBlocks)
	assert.Equal(t, []string{"Library"}, cfg.Pillars)
	assert.Equal(t, scheduler.FallbackNone, cfg.FacultyFallback)

	def := schedulerConfig(config.SchedulerConfig{})
	assert.Equal(t, scheduler.DefaultConfig().PeriodsPerDay, def.PeriodsPerDay)
	assert.Equal(t, scheduler.FallbackDepartment, def.FacultyFallback)
}

type cleanerStub struct {
	calls atomic.Int32
}

func (c *cleanerStub) Cleanup() (int, error) {
	if c.calls.Add(1) == 1 {
		return 0, errors.New("disk busy")
	}
	return 2, nil
}

func TestRunExportCleanupStopsWithContext(t *testing.T) {
	cleaner := &cleanerStub{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runExportCleanup(ctx, cleaner, 5*time.Millisecond, zap.NewNop())
		close(done)
	}()

	assert.Eventually(t, func() bool { return cleaner.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}

	// a zero interval disables the loop
	runExportCleanup(context.Background(), cleaner, 0, zap.NewNop())
}
