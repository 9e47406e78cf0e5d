package main

import "github.com/kamusis/cerebro/cmd"

func main() {
	cmd.Execute()
}
