package main

import "github.com/ardanlabs/hashledger/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
