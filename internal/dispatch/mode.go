package dispatch

// Mode identifies what the run subcommand should start.
type Mode string

const (
	ModeWeb         Mode = "web"
	ModeWebDev      Mode = "web-dev"
	ModeWorker      Mode = "worker"
	ModeTest        Mode = "test"
	ModeBash        Mode = "bash"
	ModePassthrough Mode = "passthrough"
)

// ParseMode maps the first run argument to a Mode. Unrecognized names are
// ModePassthrough: the whole argument list runs verbatim.
func ParseMode(arg string) Mode {
	switch m := Mode(arg); m {
	case ModeWeb, ModeWebDev, ModeWorker, ModeTest, ModeBash:
		return m
	default:
		return ModePassthrough
	}
}
