package version

// Version is overridden at build time with
// -ldflags "-X github.com/guiyumin/vscribe/internal/core/version.Version=1.2.3".
var Version = "dev"
