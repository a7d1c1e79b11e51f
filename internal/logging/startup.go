package logging

import (
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects process identity, the configured endpoint, camera
// dependencies and feature flags, then emits a single structured event
// summarising how the service was configured. Credentials are never part
// of it; only the path of the access file is recorded.
type StartupLogger struct {
	name         string
	commitHash   string
	buildTime    string
	initDuration time.Duration

	endpoint   string
	region     string
	accessFile string
	cameras    []string
	features   map[string]bool
	config     map[string]string
}

// NewStartupLogger creates a StartupLogger for the given entry point
// (e.g. "vision-lambda", "sagemaker-vision serve").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:     name,
		features: make(map[string]bool),
		config:   make(map[string]string),
	}
}

// CommitHash sets the git commit hash baked into the binary at build time.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// BuildTime sets the UTC build timestamp baked into the binary at build time.
func (s *StartupLogger) BuildTime(t string) *StartupLogger {
	s.buildTime = t
	return s
}

// Endpoint registers the SageMaker endpoint and its region.
func (s *StartupLogger) Endpoint(name, region string) *StartupLogger {
	s.endpoint = name
	s.region = region
	return s
}

// AccessFile registers the path of the credentials file. Only the path is
// logged, never its contents.
func (s *StartupLogger) AccessFile(path string) *StartupLogger {
	s.accessFile = path
	return s
}

// Cameras registers the camera dependencies.
func (s *StartupLogger) Cameras(names ...string) *StartupLogger {
	s.cameras = append(s.cameras, names...)
	return s
}

// Feature registers a boolean feature flag (e.g. "downscale", "requestTimeout").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long initialization took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// EnvOrDefault returns the value of the named environment variable, or
// defaultVal if the variable is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// Log emits a single structured INFO event with everything collected.
func (s *StartupLogger) Log() {
	evt := log.Info()

	process := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", os.Getenv(LevelEnv))
	if s.commitHash != "" {
		process = process.Str("commitHash", s.commitHash)
	}
	if s.buildTime != "" {
		process = process.Str("buildTime", s.buildTime)
	}
	evt = evt.Dict("process", process)

	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		evt = evt.Dict("lambda", zerolog.Dict().
			Str("functionName", fn).
			Str("version", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
			Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE")).
			Str("logGroup", os.Getenv("AWS_LAMBDA_LOG_GROUP_NAME")))
	}

	if s.endpoint != "" {
		ep := zerolog.Dict().Str("name", s.endpoint).Str("region", s.region)
		if s.accessFile != "" {
			ep = ep.Str("accessFile", s.accessFile)
		}
		evt = evt.Dict("endpoint", ep)
	}

	if len(s.cameras) > 0 {
		evt = evt.Strs("cameras", s.cameras)
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(s.features) {
			d = d.Bool(k, s.features[k])
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(s.config) {
			d = d.Str(k, s.config[k])
		}
		evt = evt.Dict("config", d)
	}

	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Vision service startup complete")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
