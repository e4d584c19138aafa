package main

import "github.com/ValentinKolb/objstore/cmd"

func main() {
	cmd.Execute()
}
