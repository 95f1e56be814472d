package main

import (
	"context"
	"time"

	"pwrsup-go/bus"
	"pwrsup-go/errcode"
	"pwrsup-go/internal/platform"
	"pwrsup-go/services/console"
	"pwrsup-go/supervisor"
	"pwrsup-go/x/conv"
)

func main() {
	// Let the rails and USB CDC settle before touching the host line.
	time.Sleep(time.Duration(supervisor.BootDelayMs) * time.Millisecond)

	var mj, mn [4]byte
	println("[main] pwrsup firmware " + string(conv.Utoa(mj[:], uint64(supervisor.FirmwareMajor))) +
		"." + string(conv.Utoa(mn[:], uint64(supervisor.FirmwareMinor))))

	board, err := platform.New()
	if err != nil {
		supervisor.Trap(err)
	}
	println("[main] board " + board.Name)

	ctx := context.Background()
	b := bus.NewBus(4)

	sup, err := supervisor.New(board.Peripherals, b.NewConnection("supervisor"))
	if err != nil {
		supervisor.Trap(err)
	}
	if err := sup.Start(); err != nil {
		supervisor.Trap(err)
	}

	cons := &console.Service{}
	if err := cons.Start(ctx, b.NewConnection("console")); err != nil {
		println("[main] console not started:", err.Error())
	}

	if err := board.Attach(ctx, sup); err != nil {
		supervisor.Trap(err)
	}

	println("[main] supervisor running")
	err = sup.Run(ctx)
	if errcode.Of(err) == errcode.Suspended {
		// Only reachable where standby hands control back (host builds).
		println("[main] suspended")
		return
	}
	supervisor.Trap(err)
}
