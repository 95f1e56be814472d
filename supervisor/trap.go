package supervisor

// Trap is the terminal handler for configuration failures. It reports err and
// parks the caller forever; there is no recovery path.
func Trap(err error) {
	if err != nil {
		println("[trap]", err.Error())
	} else {
		println("[trap] halted")
	}
	select {}
}
