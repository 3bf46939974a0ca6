package main

import "foundit-backend/cmd"

func main() {
	cmd.Run()
}
