package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const dotenvFileName = ".env"

// FindDotenv walks from start up to the filesystem root and returns the first .env file.
func FindDotenv(fs afero.Fs, start string) (string, bool) {
	dir := filepath.Clean(start)
	for {
		candidate := filepath.Join(dir, dotenvFileName)
		if info, err := fs.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadDotenv reads a .env file and exports its variables into the process
// environment. Variables that are already set keep their values.
func LoadDotenv(fs afero.Fs, filename string) ([]string, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(filename)
	v.SetConfigType("dotenv")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	var loaded []string
	for _, key := range v.AllKeys() {
		// viper lowercases keys; dotenv variables are conventionally upper case
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return loaded, fmt.Errorf("failed to export %s: %w", name, err)
		}
		loaded = append(loaded, name)
	}
	return loaded, nil
}

// MissingEnv returns the names from required that are unset or empty.
func MissingEnv(required []string) []string {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
