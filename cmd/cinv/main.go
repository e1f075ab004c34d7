package main

import "github.com/jbweber/homelab/cinv/internal/cli"

func main() {
	cli.Execute()
}
