package main

import "github.com/RMahshie/flowrig/cmd/flowctl/cmd"

func main() {
	cmd.Execute()
}
