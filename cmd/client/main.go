package main

import (
	"context"
	"os"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	if err := newRootCmd(openClient).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
