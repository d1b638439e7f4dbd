package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeCommitMetrics() string {
	return `Computes one metrics record for every file modified by each target commit, combining ownership, co-change, class structure and commit context.

USE WHEN:
- Studying the files touched by refactoring commits
- Comparing authorship and experience before a change
- Checking the class-level shape of files at the commit that changed them

INTERPRETING RESULTS:
- OWN: share of the file's lines added by its top author (0-100)
- MINOR: authors below 5% of the file's lines; many minors means diffuse ownership
- EXP / REXP: experience of the authors and of the committing author; low values mean unfamiliar code
- WMC, CBO, RFC: complexity and coupling of the file's primary class
- HsLCOM: 0 is cohesive, values near 1 are incohesive
- DIT and NOC are only computed when cross-file structural analysis is enabled
- Fields listed under "unsupported" hold defaults, not measurements
- Diagnostics list commits that could not be resolved and files that could not be parsed

METRICS RETURNED:
- Per record: commit_hash, file, ADD, DEL
- ownership: COMM, ADEV, DDEV, OWN, MINOR, OEXP, EXP
- coupling: NADEV, NDDEV, NCOMM
- structural: NOM, NOPM, NOF, NOSF, NOPF, DIT, NOC, RFC, ELOC, WMC, CBO, HsLCOM, NOSM
- context: ND, NS, AGE, FIX, NUC, CEXP, REXP
- A fingerprint identifying the record set

Requires a git repository with full history.`
}

func describeHistorySummary() string {
	return `Indexes the full commit history of a repository and summarizes it.

USE WHEN:
- Getting oriented in a repository before asking for commit metrics
- Identifying knowledge silos and single points of failure

INTERPRETING RESULTS:
- Bus factor: minimum authors who together added half of all lines
- Bus factor = 1: critical risk, one person wrote most of the code
- Top contributors are ranked by lines added

METRICS RETURNED:
- Commit, file, author and added-line counts
- First and last commit times
- Bus factor and top contributors

Requires a git repository.`
}

func describeTemporalCoupling() string {
	return `Finds files that frequently change together in git history, indicating hidden dependencies.

USE WHEN:
- Discovering implicit dependencies not visible in code
- Explaining high NADEV or NCOMM values in commit metrics

INTERPRETING RESULTS:
- Co-change count: number of commits where both files changed
- Coupling strength: co-changes divided by the larger commit count of the pair
- Strength >= 0.5 counts as a strong coupling

METRICS RETURNED:
- File pairs with co-change counts and coupling strength
- Summary: total, strong, average and maximum coupling

Requires a git repository. Analyzes the full history.`
}
