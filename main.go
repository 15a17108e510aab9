package main

import "github.com/nsxzhou1114/startpage-api/cmd"

func main() {
	cmd.Execute()
}
