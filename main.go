package main

import "github.com/andresmejia3/depthbrush/cmd"

func main() {
	cmd.Execute()
}
