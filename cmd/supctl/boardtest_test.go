package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pwrsup-go/hostlink"
	"pwrsup-go/internal/platform"
)

func TestBoardTestAgainstSim(t *testing.T) {
	sim, err := newSimOn(platform.NewTestBoard())
	require.NoError(t, err)
	defer sim.Close()

	c := hostlink.New(sim, hostlink.WithSettle(0), hostlink.WithSleep(func(time.Duration) {}))
	now := func() time.Time { return time.Date(2025, time.March, 14, 9, 26, 53, 0, time.Local) }
	sleep := func(d time.Duration) { sim.board.Tick.Advance(uint32(d / time.Millisecond)) }

	var out bytes.Buffer
	require.NoError(t, boardTest(&out, c, now, sleep))
	require.Contains(t, out.String(), "Firmware version: 0.2")
	require.Contains(t, out.String(), "Time now: 2025-03-14 09:26:53")
	require.Contains(t, out.String(), "Time now: 2025-03-14 09:26:55")
	require.Contains(t, out.String(), "Test successful")
}

func TestBoardTestStoppedCalendar(t *testing.T) {
	sim, err := newSimOn(platform.NewTestBoard())
	require.NoError(t, err)
	defer sim.Close()

	c := hostlink.New(sim, hostlink.WithSettle(0), hostlink.WithSleep(func(time.Duration) {}))
	now := func() time.Time { return time.Date(2025, time.March, 14, 9, 0, 0, 0, time.Local) }

	var out bytes.Buffer
	err = boardTest(&out, c, now, func(time.Duration) {})
	require.ErrorContains(t, err, "calendar not running")
}

func TestCommandsOnSim(t *testing.T) {
	run := func(args ...string) string {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(args)
		require.NoError(t, rootCmd.Execute())
		return out.String()
	}
	require.Equal(t, "firmware: 0.2\n", run("--sim", "version"))
	require.Contains(t, run("--sim", "battery"), "battery: raw=2400 3.818 V 62.5%")
	require.Contains(t, run("--sim", "shutdown"), "shutdown armed: power off in 30 s")
}

func TestBoardTestCommandOnSim(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the calendar check in real time")
	}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--sim", "boardtest"})
	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "Firmware version: 0.2")
	require.Contains(t, out.String(), "Test successful")
}

func TestSimCalendarRuns(t *testing.T) {
	sim, err := newSim()
	require.NoError(t, err)
	defer sim.Close()
	require.Nil(t, sim.board.Tick)

	c := hostlink.New(sim, hostlink.WithSettle(0))
	first, err := c.Time()
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	second, err := c.Time()
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestMissingPort(t *testing.T) {
	useSim = false
	rootCmd.SetArgs([]string{"version"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	require.Error(t, rootCmd.Execute())
}
