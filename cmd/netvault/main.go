// Command netvault monitors network devices over SNMP, SSH and REST and
// audits them individually and as a fleet.
package main

import (
	"os"
)

func main() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
