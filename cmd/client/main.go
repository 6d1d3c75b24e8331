package main

import "bloodsheltie/cmd/client/cmd"

func main() {
	cmd.Execute()
}
