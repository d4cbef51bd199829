package main

import (
	"github.com/venadolabs/chanbind/cmd"
)

func main() {
	cmd.Execute()
}
