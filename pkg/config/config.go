package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/fulmenhq/repopolicy/pkg/safeio"
	"github.com/fulmenhq/repopolicy/pkg/schema"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	// ErrConfigFile marks an unreadable or schema-invalid .repopolicy.yaml.
	ErrConfigFile = errors.New("invalid configuration file")
	// ErrInvalidOptions marks resolved options that fail validation.
	ErrInvalidOptions = errors.New("invalid options")
)

// Package managers a project can be developed with.
var PackageManagers = []string{"conda", "pixi", "pixi+uv", "uv", "venv", "none"}

// Frequencies at which lock files are refreshed.
var LockFrequencies = []string{"no", "biweekly", "monthly", "bimonthly", "quarterly", "biannually", "outsource"}

// Options holds every switch of check-dev-files. Keys match the CLI flag
// names so the same spelling works in .repopolicy.yaml and REPOPOLICY_* variables.
type Options struct {
	AllowDeprecatedWorkflows bool     `mapstructure:"allow-deprecated-workflows"`
	AllowLabels              bool     `mapstructure:"allow-labels"`
	AllowedCellMetadata      []string `mapstructure:"allowed-cell-metadata"`
	CISkippedTests           []string `mapstructure:"ci-skipped-tests" validate:"dive,pyversion"`
	CITestExtras             []string `mapstructure:"ci-test-extras"`
	Dependabot               string   `mapstructure:"dependabot" validate:"omitempty,oneof=keep update"`
	DevPythonVersion         string   `mapstructure:"dev-python-version" validate:"required,pyversion"`
	DocAptPackages           []string `mapstructure:"doc-apt-packages"`
	EnvironmentVariables     string   `mapstructure:"environment-variables"`
	ExcludedPythonVersions   []string `mapstructure:"excluded-python-versions" validate:"dive,pyversion"`
	GithubPages              bool     `mapstructure:"github-pages"`
	Gitpod                   bool     `mapstructure:"gitpod"`
	ImportsOnTop             bool     `mapstructure:"imports-on-top"`
	KeepIssueTemplates       bool     `mapstructure:"keep-issue-templates"`
	KeepPRLinting            bool     `mapstructure:"keep-pr-linting"`
	NoBinder                 bool     `mapstructure:"no-binder"`
	NoCD                     bool     `mapstructure:"no-cd"`
	NoCspellUpdate           bool     `mapstructure:"no-cspell-update"`
	NoGithubActions          bool     `mapstructure:"no-github-actions"`
	NoMacos                  bool     `mapstructure:"no-macos"`
	NoMilestones             bool     `mapstructure:"no-milestones"`
	NoPypi                   bool     `mapstructure:"no-pypi"`
	NoPython                 bool     `mapstructure:"no-python"`
	NoRuff                   bool     `mapstructure:"no-ruff"`
	NoVersionBranches        bool     `mapstructure:"no-version-branches"`
	OutsourcePixiToTox       bool     `mapstructure:"outsource-pixi-to-tox"`
	PackageManager           string   `mapstructure:"package-manager" validate:"required,oneof=conda pixi pixi+uv uv venv none"`
	PoliciesDir              string   `mapstructure:"policies-dir"`
	PytestSingleThreaded     bool     `mapstructure:"pytest-single-threaded"`
	RepoName                 string   `mapstructure:"repo-name"`
	RepoOrganization         string   `mapstructure:"repo-organization" validate:"required"`
	RepoTitle                string   `mapstructure:"repo-title"`
	UpdateLockFiles          string   `mapstructure:"update-lock-files" validate:"required,oneof=no biweekly monthly bimonthly quarterly biannually outsource"`
}

// Defaults mirrors the flag defaults of check-dev-files.
var Defaults = map[string]any{
	"dev-python-version": "3.12",
	"package-manager":    "uv",
	"policies-dir":       ".repopolicy",
	"repo-organization":  "ComPWA",
	"update-lock-files":  "outsource",
}

// ConfigName is the base name of the optional options file in the project root.
const ConfigName = ".repopolicy"

// Load resolves Options for the project in dir: defaults, then
// .repopolicy.yaml, then REPOPOLICY_* environment variables, then any
// changed flags.
func Load(dir string, flags *pflag.FlagSet) (*Options, error) {
	v := viper.New()
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("REPOPOLICY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %v", ErrConfigFile, err)
		}
	} else if err := validateConfigFile(v.ConfigFileUsed()); err != nil {
		return nil, err
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}
	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range optionKeys() {
		_ = v.BindEnv(key)
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigFile, err)
	}
	opts.normalize(dir)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

func validateConfigFile(path string) error {
	clean, err := safeio.CleanUserPath(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigFile, err)
	}
	data, err := os.ReadFile(clean) // #nosec G304 -- config path resolved by viper inside the project
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigFile, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigFile, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	res, err := schema.Validate(doc, "repopolicy-config.json")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigFile, err)
	}
	if !res.Valid {
		return fmt.Errorf("%w: %s: %s", ErrConfigFile, filepath.Base(clean), strings.Join(res.Messages(), "; "))
	}
	return nil
}

func (o *Options) normalize(dir string) {
	o.AllowedCellMetadata = ToList(strings.Join(o.AllowedCellMetadata, ","))
	o.CISkippedTests = ToList(strings.Join(o.CISkippedTests, ","))
	o.CITestExtras = ToList(strings.Join(o.CITestExtras, ","))
	o.DocAptPackages = ToList(strings.Join(o.DocAptPackages, ","))
	o.ExcludedPythonVersions = ToList(strings.Join(o.ExcludedPythonVersions, ","))
	if o.RepoName == "" {
		if abs, err := filepath.Abs(dir); err == nil {
			o.RepoName = filepath.Base(abs)
		}
	}
	if o.RepoTitle == "" {
		o.RepoTitle = o.RepoName
	}
}

var pyVersionRe = regexp.MustCompile(`^3\.\d+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	_ = v.RegisterValidation("pyversion", func(fl validator.FieldLevel) bool {
		return pyVersionRe.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks the resolved options.
func (o *Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("--%s is required", name)
	case "oneof":
		return fmt.Sprintf("--%s must be one of [%s], got %q", name, fe.Param(), fe.Value())
	case "pyversion":
		return fmt.Sprintf("--%s: %q is not a Python version of the form 3.X", name, fe.Value())
	default:
		return fmt.Sprintf("--%s failed %s validation", name, fe.Tag())
	}
}

// Environment parses EnvironmentVariables ("A=1, B=2") into a map.
func (o *Options) Environment() map[string]string {
	return EnvironmentVariables(o.EnvironmentVariables)
}

// IsPython reports whether Python-specific checks should run.
func (o *Options) IsPython() bool { return !o.NoPython }

// ToList splits a comma- or space-separated flag value and sorts the items.
func ToList(arg string) []string {
	fields := strings.Fields(strings.ReplaceAll(arg, ",", " "))
	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)
	return fields
}

// EnvironmentVariables parses "A=1, B=2" style definitions. Items without
// an equals sign are ignored.
func EnvironmentVariables(arg string) map[string]string {
	out := map[string]string{}
	for _, item := range strings.Fields(strings.ReplaceAll(arg, ",", " ")) {
		key, value, ok := strings.Cut(item, "=")
		if !ok || key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func optionKeys() []string {
	keys := make([]string, 0, 40)
	t := reflect.TypeOf(Options{})
	for i := 0; i < t.NumField(); i++ {
		keys = append(keys, t.Field(i).Tag.Get("mapstructure"))
	}
	return keys
}
