// Command testmend repairs failing pytest suites with LLM-generated fixes.
package main

import (
	"os"

	"github.com/testmend/testmend/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
