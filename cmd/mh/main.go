// Package main is the entry point for the mh CLI client.
package main

import "github.com/donaldgifford/meli-harvester/cmd/mh/cmd"

func main() {
	cmd.Execute()
}
