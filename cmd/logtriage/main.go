// Command logtriage classifies test logs and writes a resumable report.
package main

import "github.com/mesh-intelligence/logtriage/internal/cli"

func main() {
	cli.Execute()
}
