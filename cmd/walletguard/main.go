package main

import "github.com/vietddude/walletguard/internal/cli"

func main() {
	cli.Execute()
}
