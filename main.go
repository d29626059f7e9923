package main

import (
	_ "embed"

	"github.com/chunkvault/chunk-upload-service/cmd"
)

//go:embed config/config.yaml
var c string

func main() {
	cmd.Execute(c)
}
