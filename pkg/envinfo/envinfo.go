package envinfo

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
)

const sdkModule = "github.com/rabbitmq/amqp091-go"

// Files whose presence marks a container runtime. Best effort, a miss on both
// simply reports false.
var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

// Info is the diagnostic block printed before the tests run. Collecting it
// never fails: probes that cannot be answered degrade to "unknown".
type Info struct {
	GoVersion    string
	SDKVersion   string
	Platform     string
	Architecture string
	Hostname     string
	InContainer  bool
	NumMessages  int
	SessionID    string
	PatchApplied bool
}

// Collect gathers the environment facts for one run.
func Collect(sessionID string, numMessages int, patchApplied bool) Info {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return Info{
		GoVersion:    runtime.Version(),
		SDKVersion:   sdkVersion(),
		Platform:     runtime.GOOS,
		Architecture: runtime.GOARCH,
		Hostname:     hostname,
		InContainer:  inContainer(),
		NumMessages:  numMessages,
		SessionID:    sessionID,
		PatchApplied: patchApplied,
	}
}

func (i Info) String() string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "ENVIRONMENT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "  Go              : %s\n", i.GoVersion)
	fmt.Fprintf(&b, "  amqp091-go      : %s\n", i.SDKVersion)
	fmt.Fprintf(&b, "  Platform        : %s\n", i.Platform)
	fmt.Fprintf(&b, "  Architecture    : %s\n", i.Architecture)
	fmt.Fprintf(&b, "  Hostname        : %s\n", i.Hostname)
	fmt.Fprintf(&b, "  In container    : %t\n", i.InContainer)
	fmt.Fprintf(&b, "  Messages        : %d\n", i.NumMessages)
	fmt.Fprintf(&b, "  Session ID      : %s\n", i.SessionID)
	fmt.Fprintf(&b, "  Patch applied   : %t\n", i.PatchApplied)
	return b.String()
}

func inContainer() bool {
	for _, marker := range containerMarkers {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}
	return false
}

// sdkVersion resolves the version of the AMQP client this binary was built
// against. Outside a module build (go run on a loose file) there is no build
// info to read.
func sdkVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range bi.Deps {
		if dep.Path == sdkModule {
			return dep.Version
		}
	}
	return "unknown"
}
