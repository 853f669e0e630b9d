package main

import "github.com/openclaw/kmsg/pkg/cli"

func main() {
	cli.Execute()
}
