package main

import (
	"os"

	"inferproxy/internal/proxyctl"
)

func main() {
	os.Exit(proxyctl.Main())
}
