package main

import "github.com/lovelyswap/golovelyd/internal/cli"

func main() {
	cli.Execute()
}
