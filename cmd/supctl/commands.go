package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pwrsup-go/hostlink"
	"pwrsup-go/supervisor"
)

// withClient wraps a command body with connect and release.
func withClient(run func(cmd *cobra.Command, c *hostlink.Client) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		c, release, err := connect(cmd)
		if err != nil {
			return err
		}
		defer release()
		return run(cmd, c)
	}
}

var batteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "Read the battery voltage and charge estimate",
	RunE: withClient(func(cmd *cobra.Command, c *hostlink.Client) error {
		st, err := c.BatteryStatus()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "battery: raw=%d %.3f V %.1f%%\n", st.Raw, st.Volts, st.Percent)
		return nil
	}),
}

var setNow bool

var timeCmd = &cobra.Command{
	Use:   "time",
	Short: "Read (or set) the supervisor calendar",
	RunE: withClient(func(cmd *cobra.Command, c *hostlink.Client) error {
		if setNow {
			if err := c.SetDateTime(time.Now()); err != nil {
				return err
			}
		}
		t, err := c.DateTime(time.Local)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "time:", t.Format("2006-01-02 15:04:05"))
		return nil
	}),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Read the supervisor firmware version",
	RunE: withClient(func(cmd *cobra.Command, c *hostlink.Client) error {
		v, err := c.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "firmware: %d.%d\n", v.Major, v.Minor)
		return nil
	}),
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Arm the deferred power-off",
	Long: `Arms the supervisor's deferred power-off. The host must halt within the
dwell; the supervisor then cuts power and enters standby until external power
returns. A later restart command replaces a pending shutdown.`,
	RunE: withClient(func(cmd *cobra.Command, c *hostlink.Client) error {
		if err := c.Shutdown(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "shutdown armed: power off in %d s\n", supervisor.ShutdownDwellMs/1000)
		return nil
	}),
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Arm the deferred power cycle",
	RunE: withClient(func(cmd *cobra.Command, c *hostlink.Client) error {
		if err := c.Restart(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restart armed: power cycle in %d s\n", supervisor.ShutdownDwellMs/1000)
		return nil
	}),
}

var ledTestCmd = &cobra.Command{
	Use:   "ledtest",
	Short: "Blink green then red and restore the indicators",
	RunE: withClient(func(cmd *cobra.Command, c *hostlink.Client) error {
		return c.LEDTest()
	}),
}

var boardTestCmd = &cobra.Command{
	Use:   "boardtest",
	Short: "Run the factory check: version, battery, calendar, LEDs",
	RunE: withClient(func(cmd *cobra.Command, c *hostlink.Client) error {
		return boardTest(cmd.OutOrStdout(), c, time.Now, time.Sleep)
	}),
}

func init() {
	timeCmd.Flags().BoolVar(&setNow, "set-now", false, "Set the calendar to the host clock first")
	rootCmd.AddCommand(batteryCmd, timeCmd, versionCmd, shutdownCmd, restartCmd, ledTestCmd, boardTestCmd)
}
