package main

import (
	"LanFM/cmd"
)

func main() {
	cmd.Execute()
}
