package main

import (
	"os"

	"blogapi/service"
)

var exit = os.Exit

func main() {
	exit(service.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
