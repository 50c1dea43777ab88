// ./main.go
package main

import (
	"github.com/xkilldash9x/domtree/cmd"
)

func main() {
	cmd.Execute()
}
