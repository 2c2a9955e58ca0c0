package main

import (
	"github.com/mikeydub/erc20-holders-indexer/indexer/cmd"
)

func main() {
	cmd.Execute()
}
