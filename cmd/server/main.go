package main

import "github.com/iliyamo/restaurant-queue/internal/cli"

func main() {
	cli.Execute()
}
