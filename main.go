package main

import "github.com/jan-cermak-1/fuel-2-content-factory-sub000/cmd"

func main() {
	cmd.Execute()
}
