package main

import "github.com/caedis/mtg-installer/cmd"

func main() {
	cmd.Execute()
}
