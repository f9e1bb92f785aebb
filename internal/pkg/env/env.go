// Package env provides a read-only abstraction for environment variables,
// so tests can inject values without touching the process environment.
package env

import (
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Provider is a read-only interface to get an ENV value.
type Provider interface {
	Lookup(key string) (string, bool)
	Get(key string) string
}

// Map holds ENV variables, keys are uppercase.
type Map struct {
	lock sync.RWMutex
	data map[string]string
}

func Empty() *Map {
	return &Map{data: make(map[string]string)}
}

func FromMap(data map[string]string) *Map {
	m := Empty()
	for k, v := range data {
		m.Set(k, v)
	}
	return m
}

func FromOs() *Map {
	m := Empty()
	for _, pair := range os.Environ() {
		if k, v, found := strings.Cut(pair, "="); found {
			m.Set(k, v)
		}
	}
	return m
}

// LoadDotEnv merges variables from the ".env" file, if it exists.
// OS variables take precedence over the file content.
func (m *Map) LoadDotEnv(path string) error {
	fileEnvs, err := godotenv.Read(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	for k, v := range fileEnvs {
		k = strings.ToUpper(k)
		if _, found := m.data[k]; !found {
			m.data[k] = v
		}
	}
	return nil
}

func (m *Map) Lookup(key string) (string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, found := m.data[strings.ToUpper(key)]
	return v, found
}

func (m *Map) Get(key string) string {
	v, _ := m.Lookup(key)
	return v
}

func (m *Map) Set(key, value string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.data[strings.ToUpper(key)] = value
}
