package main

import (
	"github.com/grailbio/base/grail"
	"v.io/x/lib/cmdline"
)

func main() {
	shutdown := grail.Init()
	defer shutdown()
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-scale-factors",
			Short:    "Compute normalization scale factors for coverage tracks",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdCountSpikeIn(),
				newCmdCompute(),
				newCmdGet(),
			},
		})
}
