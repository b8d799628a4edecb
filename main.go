package main

import (
	"os"

	"hstin/xy2osm/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], cmd.DefaultDeps()))
}
