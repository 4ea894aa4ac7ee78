// main is the entry point for the corpusci CLI.
package main

import (
	"github.com/corpusci/corpusci/cmd"
	"github.com/corpusci/corpusci/internal/contract"
)

func main() {
	if err := cmd.Execute(); err != nil {
		contract.LogFatal("Cannot execute command", err)
	}
}
