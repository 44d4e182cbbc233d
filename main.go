package main

import "notehub-sync/cmd"

func main() {
	cmd.Execute()
}
