package main

import "github.com/JeroniMan/solana-indexer/cmd"

func main() {
	cmd.Execute()
}
