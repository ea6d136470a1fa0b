package main

import "github.com/redbirdapp/redbird/cmd"

func main() {
	cmd.Execute()
}
