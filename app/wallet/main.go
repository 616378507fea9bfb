package main

import "github.com/ardanlabs/dposchain/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
