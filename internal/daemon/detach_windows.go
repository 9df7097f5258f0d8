//go:build windows

package daemon

func startDetached(launch) (int, error) {
	return 0, ErrUnsupported
}
