// Command intentgate runs the intent verification gateway: it screens
// prospective transactions through a pool of simulators, watches the mempool
// and target state for interference, and gates execution on the consensus
// decision.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
