// Command zigsense analyzes Zigbee (IEEE 802.15.4) captures: it ranks
// likely device roles, bins traffic into windows, labels windows and
// trains a window classifier.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
