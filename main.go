// The main package for the sitemap-hunter executable.
package main

import (
	"github.com/p4blo4p/sitemap-hunter/cmd"
)

func main() {
	cmd.Execute()
}
