package main

import "momentum-scanner/internal/cli"

func main() {
	cli.Execute()
}
