package main

import "github.com/lpstake/lpstake/cmd"

func main() {
	cmd.Execute()
}
