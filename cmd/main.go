// Package main is the production entry point for the cyder command.
//
// Build:
//
//	go build -o build/cyder ./cmd
//
// Run:
//
//	./build/cyder play ~/Music/song.mp3
package main

import "github.com/tejashwikalptaru/cyder/internal/cli"

func main() {
	cli.Execute()
}
