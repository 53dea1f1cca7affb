package main

import "github.com/RyanBlaney/cgmm-mask/cmd"

func main() {
	cmd.Execute()
}
