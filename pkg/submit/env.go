package submit

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TagTimeFormat names runs started without a tag.
const TagTimeFormat = "20060102-150405"

// ResolveEnv returns the value of name from the process environment, or
// from envFile when the process does not define it. The process always wins.
func ResolveEnv(name, envFile string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("environment variable name is empty")
	}
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		if err != nil {
			if os.IsNotExist(err) {
				return "", &MissingEnvError{Name: name, EnvFile: envFile}
			}
			return "", fmt.Errorf("read env file %s: %w", envFile, err)
		}
		if v, ok := values[name]; ok {
			return v, nil
		}
	}
	return "", &MissingEnvError{Name: name, EnvFile: envFile}
}

// SanitizeTag collapses whitespace runs and path separators into hyphens.
// An empty tag becomes the run start time.
func SanitizeTag(tag string, start time.Time) string {
	tag = strings.Join(strings.Fields(tag), "-")
	tag = strings.ReplaceAll(tag, "/", "-")
	if tag == "" {
		return start.Format(TagTimeFormat)
	}
	return tag
}
