package main

import "github.com/whitecross/gateway/cmd/server/cmd"

func main() {
	cmd.Execute()
}
