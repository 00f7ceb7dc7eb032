package main

import "github.com/MrCodeEU/LiveCheck/internal/cli"

func main() {
	cli.Execute()
}
