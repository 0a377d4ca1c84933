package main

import (
	"github.com/larsks/pductl/internal/api"
	"github.com/larsks/pductl/internal/cli"
)

func main() {
	cli.StandardMain(
		func() cli.Configurable { return api.NewConfig() },
		api.NewAPIHandler(),
	)
}
