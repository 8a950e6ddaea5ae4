package main

import "github.com/relloyd/cdcpipe/cmd"

func main() {
	cmd.Execute()
}
