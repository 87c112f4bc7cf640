package lifecycle

// ProcessAlive always reports false, node processes are not tracked on windows
func ProcessAlive(int) bool {
	return false
}
