package main

import (
	"context"
	"errors"
	"flag"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"pwrsup-go/hostlink"
	"pwrsup-go/internal/platform"
	"pwrsup-go/supervisor"
)

var (
	cfgPath   string
	portName  string
	baudRate  int
	timeoutMs int
	settleMs  int
	spiName   string
	spiHz     int
	useSim    bool
)

var rootCmd = &cobra.Command{
	Use:   "supctl",
	Short: "Power supervisor control",
	Long: `supctl queries and commands the battery power supervisor over its
4-byte command link.

Connection:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  SPI:       --spi /dev/spidev0.0 [--spi-hz 50000]
  Simulated: --sim (in-process supervisor on host fakes)

Settings may also come from a YAML file given with --config; flags win.`,
	Version:      "0.2.0",
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgPath, "config", "c", "", "YAML config file")
	pf.StringVarP(&portName, "port", "p", "", "Serial port device")
	pf.IntVarP(&baudRate, "baud", "b", 115200, "Baud rate")
	pf.IntVar(&timeoutMs, "timeout", 500, "Per-exchange read timeout in ms")
	pf.IntVar(&settleMs, "settle", 1, "Delay between a command and its read-back in ms")
	pf.StringVar(&spiName, "spi", "", "SPI port (spidev path or periph name)")
	pf.IntVar(&spiHz, "spi-hz", hostlink.DefaultSPIHz, "SPI clock in Hz")
	pf.BoolVar(&useSim, "sim", false, "Use an in-process simulated supervisor")
	pf.AddGoFlagSet(flag.CommandLine)
}

// resolveConfig loads the config file and applies explicitly set flags.
func resolveConfig(cmd *cobra.Command) (Config, error) {
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return cfg, err
	}
	fl := cmd.Flags()
	if fl.Changed("port") {
		cfg.Port = portName
	}
	if fl.Changed("baud") {
		cfg.Baud = baudRate
	}
	if fl.Changed("timeout") {
		cfg.TimeoutMs = timeoutMs
	}
	if fl.Changed("settle") {
		cfg.SettleMs = settleMs
	}
	if fl.Changed("spi") {
		cfg.SPI = spiName
	}
	if fl.Changed("spi-hz") {
		cfg.SPIHz = spiHz
	}
	return cfg, cfg.Validate()
}

// connect opens the configured link. The returned func releases it.
func connect(cmd *cobra.Command) (*hostlink.Client, func() error, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if useSim {
		sim, err := newSim()
		if err != nil {
			return nil, nil, err
		}
		glog.V(1).Info("using simulated supervisor")
		return hostlink.New(sim, hostlink.WithSettle(cfg.Settle())), sim.Close, nil
	}
	if cfg.SPI != "" {
		s, err := hostlink.OpenSPI(cfg.SPI, int64(cfg.SPIHz))
		if err != nil {
			return nil, nil, err
		}
		glog.V(1).Infof("opened %s at %d Hz", cfg.SPI, cfg.SPIHz)
		return hostlink.New(s, hostlink.WithSettle(cfg.Settle())), s.Close, nil
	}
	if cfg.Port == "" {
		return nil, nil, errors.New("no link: set --port or --spi, or port or spi in the config file")
	}
	s, err := hostlink.OpenSerial(cfg.Port, cfg.Baud, cfg.Timeout())
	if err != nil {
		return nil, nil, err
	}
	glog.V(1).Infof("opened %s at %d baud", cfg.Port, cfg.Baud)
	return hostlink.New(s, hostlink.WithSettle(cfg.Settle())), s.Close, nil
}

// simLink runs a supervisor on the host fakes and steps it after every
// exchange.
type simLink struct {
	board  *platform.TestBoard
	sup    *supervisor.Supervisor
	cancel context.CancelFunc
}

// newSim runs on the real clock so the simulated calendar advances.
func newSim() (*simLink, error) { return newSimOn(platform.NewSimBoard()) }

func newSimOn(tb *platform.TestBoard) (*simLink, error) {
	sup, err := supervisor.New(tb.Peripherals, nil)
	if err != nil {
		return nil, err
	}
	if err := sup.Start(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := tb.Attach(ctx, sup); err != nil {
		cancel()
		return nil, err
	}
	sup.Raise(supervisor.EventBatteryTick)
	if err := sup.Step(); err != nil {
		cancel()
		return nil, err
	}
	return &simLink{board: tb, sup: sup, cancel: cancel}, nil
}

func (s *simLink) Tx(w, r []byte) error {
	if err := s.board.Link.Tx(w, r); err != nil {
		return err
	}
	return s.sup.Step()
}

func (s *simLink) Close() error {
	s.cancel()
	return nil
}
