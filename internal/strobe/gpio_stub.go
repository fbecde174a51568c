//go:build !linux || (!arm && !arm64)

package strobe

import "fmt"

func openGPIO(pin int) (Line, error) {
	return nil, fmt.Errorf("strobe: gpio unsupported on this platform")
}

var openGPIOFn = openGPIO
