package main

import "github.com/clearstake/stakewatch/cmd"

func main() {
	cmd.Execute()
}
