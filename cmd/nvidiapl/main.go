// Command nvidiapl shows live telemetry for an NVIDIA GPU and sets its power
// limit through nvidia-smi.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(deps{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
