package main

import "github.com/MeKo-Tech/mosaic/cmd/mosaic/cmd"

func main() {
	cmd.Execute()
}
