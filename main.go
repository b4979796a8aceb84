package main

import "github.com/KaramelBytes/agentcompare/cmd"

func main() {
	cmd.Execute()
}
