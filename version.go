package dialogtree

// Version is the release of the module, overridden at link time:
//
//	go build -ldflags "-X github.com/aretw0/dialogtree.Version=v1.2.3"
var Version = "v0.1.0-dev"
