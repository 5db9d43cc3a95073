package main

import (
	"fmt"

	"github.com/flowmesh/partbus/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
