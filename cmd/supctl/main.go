// Command supctl talks to the power supervisor from the host it powers.
package main

import (
	"flag"
	"os"

	"github.com/golang/glog"
)

func main() {
	// glog registers on the standard flag set; cobra parses it through
	// AddGoFlagSet. Mark it parsed so glog does not warn.
	_ = flag.Set("logtostderr", "true")
	_ = flag.CommandLine.Parse(nil)
	defer glog.Flush()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
