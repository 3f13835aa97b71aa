package main

import "orderkeeper/cmd/orderkeeper/cmd"

func main() {
	cmd.Execute()
}
