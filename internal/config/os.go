package config

import "os"

// OSInterface abstracts the process environment and filesystem so Parse
// can be tested without touching either.
type OSInterface interface {
	Getenv(key string) string
	Environ() []string
	Stat(name string) (os.FileInfo, error)
	ReadFile(filename string) ([]byte, error)
}

var defaultOS = OSInterface(osAdapter{})

type osAdapter struct{}

func (osAdapter) Getenv(key string) string                 { return os.Getenv(key) }
func (osAdapter) Environ() []string                        { return os.Environ() }
func (osAdapter) Stat(name string) (os.FileInfo, error)    { return os.Stat(name) }
func (osAdapter) ReadFile(filename string) ([]byte, error) { return os.ReadFile(filename) }
