// Package precommit edits .pre-commit-config.yaml while keeping its
// comments and key order.
package precommit

// Config is the typed view of a pre-commit configuration.
type Config struct {
	CI                      *CI      `yaml:"ci,omitempty"`
	Repos                   []Repo   `yaml:"repos"`
	DefaultStages           []string `yaml:"default_stages,omitempty"`
	Files                   string   `yaml:"files,omitempty"`
	Exclude                 string   `yaml:"exclude,omitempty"`
	FailFast                *bool    `yaml:"fail_fast,omitempty"`
	MinimumPreCommitVersion string   `yaml:"minimum_pre_commit_version,omitempty"`
}

// CI holds the pre-commit.ci settings.
type CI struct {
	AutofixCommitMsg    string   `yaml:"autofix_commit_msg,omitempty"`
	AutofixPRs          *bool    `yaml:"autofix_prs,omitempty"`
	AutoupdateBranch    string   `yaml:"autoupdate_branch,omitempty"`
	AutoupdateCommitMsg string   `yaml:"autoupdate_commit_msg,omitempty"`
	AutoupdateSchedule  string   `yaml:"autoupdate_schedule,omitempty"`
	Skip                []string `yaml:"skip,omitempty"`
	Submodules          *bool    `yaml:"submodules,omitempty"`
}

// Repo is one entry under repos.
type Repo struct {
	Repo  string `yaml:"repo"`
	Rev   string `yaml:"rev,omitempty"`
	Hooks []Hook `yaml:"hooks"`
}

// Hook is one hook definition of a repo.
type Hook struct {
	ID                     string   `yaml:"id"`
	Name                   string   `yaml:"name,omitempty"`
	Alias                  string   `yaml:"alias,omitempty"`
	Entry                  string   `yaml:"entry,omitempty"`
	Language               string   `yaml:"language,omitempty"`
	Args                   []string `yaml:"args,omitempty"`
	Files                  string   `yaml:"files,omitempty"`
	Exclude                string   `yaml:"exclude,omitempty"`
	Types                  []string `yaml:"types,omitempty"`
	TypesOr                []string `yaml:"types_or,omitempty"`
	ExcludeTypes           []string `yaml:"exclude_types,omitempty"`
	Stages                 []string `yaml:"stages,omitempty"`
	AdditionalDependencies []string `yaml:"additional_dependencies,omitempty"`
	LanguageVersion        string   `yaml:"language_version,omitempty"`
	AlwaysRun              *bool    `yaml:"always_run,omitempty"`
	Verbose                *bool    `yaml:"verbose,omitempty"`
	LogFile                string   `yaml:"log_file,omitempty"`
	PassFilenames          *bool    `yaml:"pass_filenames,omitempty"`
	RequireSerial          *bool    `yaml:"require_serial,omitempty"`
}

// RepoName is the last path segment of the repo URL.
func (r Repo) RepoName() string {
	for i := len(r.Repo) - 1; i >= 0; i-- {
		if r.Repo[i] == '/' {
			return r.Repo[i+1:]
		}
	}
	return r.Repo
}

// HookIDs lists the ids of the repo's hooks.
func (r Repo) HookIDs() []string {
	ids := make([]string, 0, len(r.Hooks))
	for _, h := range r.Hooks {
		ids = append(ids, h.ID)
	}
	return ids
}

// Bool returns a pointer for the optional boolean hook fields.
func Bool(b bool) *bool { return &b }
