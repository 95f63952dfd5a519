package flightctl

import (
	"fmt"
	"runtime"
	"syscall"
	"unsafe"
)

// CPU affinity masks for the companion computer boards the controller is
// deployed on.  A control loop scheduled on the efficiency cluster shows
// measurable jitter in the inference period, pin it to the fast cores.
const (
	// RK3588FastCores is the cpu affinity mask of the fast cortex A76 cores 4-7
	RK3588FastCores = uintptr(0b11110000)
	// RK3588SlowCores is the cpu affinity mask of the efficient cortex A55 cores 0-3
	RK3588SlowCores = uintptr(0b00001111)
	// RK3588AllCores is the cpu affinity mask for all cortex A76 and A55 cores 0-7
	RK3588AllCores = uintptr(0b11111111)

	// RK3566AllCores is the cpu affinity mask of all cortex A55 cores 0-3
	RK3566AllCores = uintptr(0b00001111)
)

// PinControlThread locks the calling goroutine to its OS thread and
// restricts that thread to the cores in mask.  Call from the dedicated
// control-loop goroutine before the first Control cycle.
func PinControlThread(mask uintptr) error {

	runtime.LockOSThread()

	return SetCPUAffinity(mask)
}

// SetCPUAffinity sets the CPU Affinity mask of the current thread to run
// on the specified cores
func SetCPUAffinity(mask uintptr) error {

	_, _, err := syscall.RawSyscall(syscall.SYS_SCHED_SETAFFINITY, 0,
		unsafe.Sizeof(mask), uintptr(unsafe.Pointer(&mask)))

	if err != 0 {
		return fmt.Errorf("failed to set CPU affinity: %w", err)
	}

	return nil
}

// GetCPUAffinity gets the current CPU Affinity mask the thread is running on
func GetCPUAffinity() (uintptr, error) {

	var mask uintptr

	_, _, err := syscall.RawSyscall(syscall.SYS_SCHED_GETAFFINITY, 0,
		unsafe.Sizeof(mask), uintptr(unsafe.Pointer(&mask)))

	if err != 0 {
		return 0, fmt.Errorf("failed to get CPU affinity: %w", err)
	}

	return mask, nil
}

// CPUCoreMask calculates the core mask by passing in the CPU core numbers
// as a slice, eg: []int{4,5,6,7}
func CPUCoreMask(cores []int) uintptr {

	var mask uintptr

	for _, core := range cores {
		mask |= 1 << core
	}

	return mask
}
