package main

import "github.com/hm-edu/remotesign/cmd"

func main() {
	cmd.Execute()
}
