package main

import (
	"os"

	"github.com/target/opsconsole/cmd/opsctl/cmd"
)

func main() {
	os.Exit(cmd.Execute()) //nolint:forbidigo // CLI exit status
}
