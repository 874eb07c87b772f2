package main

import "github.com/oshokin/sos-button/cmd/sos-button/cmd"

func main() {
	cmd.Execute()
}
