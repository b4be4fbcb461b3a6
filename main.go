package main

import (
	"github.com/gfalqueto/crywatch/cmd"
	"github.com/gfalqueto/crywatch/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
