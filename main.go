package main

import "github.com/JeseKi/fisco-autolight-client/cmd"

func main() {
	cmd.Execute()
}
