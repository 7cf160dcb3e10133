package main

import (
	"github.com/proofmesh-labs/proofmesh-node/internal/cmd"
)

func main() {
	cmd.Execute()
}
