package verdict

// Exit codes consumed by automation around the probe.
const (
	CodeNotReproduced = 0
	CodeBugConfirmed  = 1
	CodeInfraFailure  = 2
)

type Verdict struct {
	Code  int
	Label string
}

// Classify turns the two test outcomes into the process verdict. A failing
// sync baseline always classifies as an infrastructure problem, whatever the
// async outcome: the comparison is meaningless without a working baseline.
func Classify(syncPassed, asyncPassed bool) Verdict {
	switch {
	case !syncPassed:
		return Verdict{
			Code:  CodeInfraFailure,
			Label: "sync baseline failed: environment or credential issue, not the reported bug",
		}
	case !asyncPassed:
		return Verdict{
			Code:  CodeBugConfirmed,
			Label: "BUG CONFIRMED: async client failed where the sync client succeeded",
		}
	default:
		return Verdict{
			Code:  CodeNotReproduced,
			Label: "bug not reproduced: both clients passed",
		}
	}
}
