// Package config holds the cpp-live settings and the platform-dependent
// names derived from them.
//
// Settings are read from a VS Code style settings file. Both the flat form
//
//	{"cpp-live.maxLines": 200}
//
// and the nested form
//
//	{"cpp-live": {"maxLines": 200}}
//
// are understood; missing or mistyped keys keep their defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/tidwall/gjson"
)

// Section is the settings namespace.
const Section = "cpp-live"

const (
	DefaultMaxLines = 1000
	DefaultDebounce = 300 * time.Millisecond

	// Configured values are clamped to these bounds.
	MaxMaxLines = 1 << 30
	MaxDebounce = time.Hour

	// DefaultSettingsFile is relative to the workspace root.
	DefaultSettingsFile = ".vscode/settings.json"

	// JobifyScriptName is looked up next to the cpplive executable.
	JobifyScriptName = "jobify.ps1"
)

// Config is one snapshot of the settings.
type Config struct {
	Enabled        bool
	MaxLines       int
	PrintTimestamp bool
	Debounce       time.Duration
	Jobify         bool

	// FilePatterns select the files treated as the watched language.
	FilePatterns []string
	// JobifyScript is the PowerShell helper used when Jobify applies.
	JobifyScript string
}

// DefaultFilePatterns match C and C++ sources and headers.
var DefaultFilePatterns = []string{"*.{cpp,cc,cxx,c++,cppm,ixx,hpp,hh,hxx,h,ipp,inl,tpp}"}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Enabled:        true,
		MaxLines:       DefaultMaxLines,
		PrintTimestamp: false,
		Debounce:       DefaultDebounce,
		Jobify:         true,
		FilePatterns:   append([]string(nil), DefaultFilePatterns...),
		JobifyScript:   defaultJobifyScript(),
	}
}

// Load reads settings from path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("read settings %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes settings from JSON.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}
	if !gjson.ValidBytes(data) {
		return cfg, fmt.Errorf("settings are not valid JSON")
	}

	if v, ok := lookup(data, "enable", gjson.True, gjson.False); ok {
		cfg.Enabled = v.Bool()
	}
	if v, ok := lookup(data, "maxLines", gjson.Number); ok {
		cfg.MaxLines = int(magnitude(v.Int(), MaxMaxLines))
	}
	if v, ok := lookup(data, "printTimestamp", gjson.True, gjson.False); ok {
		cfg.PrintTimestamp = v.Bool()
	}
	if v, ok := lookup(data, "debounce", gjson.Number); ok {
		cfg.Debounce = time.Duration(magnitude(v.Int(), MaxDebounce.Milliseconds())) * time.Millisecond
	}
	if v, ok := lookup(data, "jobify", gjson.True, gjson.False); ok {
		cfg.Jobify = v.Bool()
	}
	if v, ok := lookup(data, "filePatterns"); ok && v.IsArray() {
		var patterns []string
		for _, p := range v.Array() {
			if p.Type == gjson.String && p.Str != "" {
				patterns = append(patterns, p.Str)
			}
		}
		if len(patterns) > 0 {
			cfg.FilePatterns = patterns
		}
	}
	if v, ok := lookup(data, "jobifyScript", gjson.String); ok && v.Str != "" {
		cfg.JobifyScript = v.Str
	}

	return cfg, nil
}

// lookup finds key in flat or nested form. With types given, a value of any
// other type is treated as absent.
func lookup(data []byte, key string, types ...gjson.Type) (gjson.Result, bool) {
	for _, path := range []string{
		gjson.Escape(Section + "." + key),
		gjson.Escape(Section) + "." + key,
	} {
		v := gjson.GetBytes(data, path)
		if !v.Exists() {
			continue
		}
		if len(types) == 0 {
			return v, true
		}
		for _, t := range types {
			if v.Type == t {
				return v, true
			}
		}
	}
	return gjson.Result{}, false
}

// magnitude returns |v| capped at limit. The magnitude of math.MinInt64 does
// not fit an int64 and is capped as well.
func magnitude(v, limit int64) int64 {
	if v < 0 {
		v = -v
	}
	if v < 0 || v > limit {
		return limit
	}
	return v
}

// IsWindows reports whether the host runs Windows.
func IsWindows() bool {
	return runtime.GOOS == "windows"
}

// ProcessName is the file name of the build/run command searched for next
// to the edited source.
func ProcessName() string {
	return processNameFor(runtime.GOOS)
}

func processNameFor(goos string) string {
	if goos == "windows" {
		return "c++live.bat"
	}
	return "c++live.sh"
}

func defaultJobifyScript() string {
	exe, err := os.Executable()
	if err != nil {
		return JobifyScriptName
	}
	return filepath.Join(filepath.Dir(exe), JobifyScriptName)
}
