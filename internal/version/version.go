package version

// Version is replaced at build time with -ldflags "-X ...version.Version=<tag>".
var Version = "dev"
