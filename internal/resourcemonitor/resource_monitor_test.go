package resourcemonitor

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestMonitor_StartStop_NoPanicAndSamplesSize(t *testing.T) {
	sizeCalls := 0
	m, err := New(Config{
		PollInterval:      10 * time.Millisecond,
		MaxRSSBytes:       0,
		MaxGoroutines:     0,
		MaxHistoryEntries: 0,
	}, logrus.New(), func() int {
		sizeCalls++
		return 3
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	time.Sleep(35 * time.Millisecond)
	m.Stop()

	require.Greater(t, sizeCalls, 0)
}

func TestMonitor_StartTwice_SecondCallIsNoop(t *testing.T) {
	m, err := New(Config{PollInterval: time.Second}, logrus.New(), func() int { return 0 })
	require.NoError(t, err)

	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx)
	m.Stop()
}
