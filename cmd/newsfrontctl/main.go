// Command newsfrontctl is the operator CLI: it checks a deployment
// environment against the configuration gate and builds sitemaps offline.
package main

import (
	"os"
)

func main() {
	if err := getRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
