// Package main provides the schedtrain command line interface.
package main

import (
	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/cmd/schedtrain/cmd"
)

func main() {
	cmd.Execute()
}
