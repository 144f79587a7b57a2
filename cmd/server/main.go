package main

import "github.com/puddingmeetup/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
