//go:build !linux

package launcher

import "runtime"

// PinToCore only locks the calling goroutine to its OS thread; CPU binding
// is Linux-only.
func PinToCore(int) error {
	runtime.LockOSThread()
	return nil
}
