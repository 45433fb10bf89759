package main

import "github.com/inovacc/redditharvest/cmd"

func main() {
	cmd.Execute()
}
