package main

import "github/chapool/cardano-vault/cmd"

func main() {
	cmd.Execute()
}
