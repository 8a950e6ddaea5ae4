package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

var cdcpipeHomeDir string

// Main holds default flag values for commands.
var Main *File

func init() {
	Main = NewFileWithDir(mustGetConfigHomeDir(), MainFileFullName)
}

const (
	MainDir            = ".cdcpipe"
	MainFileNamePrefix = "config"
	MainFileNameExt    = "yaml"
	MainFileFullName   = MainFileNamePrefix + "." + MainFileNameExt
)

// FileNotFoundError denotes failing to find configuration file.
type FileNotFoundError struct {
	name string
}

// Error returns the formatted configuration error.
func (f FileNotFoundError) Error() string {
	return fmt.Sprintf("config file %q not found", f.name)
}

type KeyNotFoundError struct {
	configFile string
	key        string
}

func (k KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %q not found in config file %q", k.key, k.configFile)
}

// File is a flat YAML map of keys to default values.
// The file is created lazily on the first Set.
type File struct {
	Dirname      string
	FileName     string
	FilePrefix   string
	FileExt      string
	FullPath     string
	data         map[string]interface{}
	dataIsLoaded bool
	mu           sync.Mutex
}

func NewFileWithDir(dirName string, filename string) *File {
	c := &File{Dirname: dirName, FileName: filename}
	c.FullPath = path.Join(dirName, filename)
	c.FileExt = strings.TrimLeft(path.Ext(filename), ".")
	c.FilePrefix = strings.TrimSuffix(c.FileName, "."+c.FileExt)
	c.data = make(map[string]interface{})
	return c
}

// Get will fetch the key from the config File into variable, out, which must be a pointer.
// Scalars are converted to the type of out, so "port: 8080" may be read into a string.
// Return KeyNotFoundError if we can't find the key.
func (c *File) Get(key string, out interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	d, ok := c.data[key]
	if !ok {
		return KeyNotFoundError{c.FullPath, key}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{WeaklyTypedInput: true, Result: out})
	if err != nil {
		return err
	}
	return dec.Decode(d)
}

func (c *File) Set(key string, val interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	c.data[key] = val
	return c.save(key)
}

func (c *File) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	if _, keyExists := c.data[key]; !keyExists {
		return KeyNotFoundError{c.FullPath, key}
	}
	delete(c.data, key)
	return c.save(key)
}

// GetAllKeys returns the sorted keys in the file.
func (c *File) GetAllKeys() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return nil, err
	}
	retval := make([]string, 0, len(c.data))
	for k := range c.data {
		retval = append(retval, k)
	}
	sort.Strings(retval)
	return retval, nil
}

// ensureLoaded reads the file once. A missing file is an empty config.
func (c *File) ensureLoaded() error {
	if c.dataIsLoaded {
		return nil
	}
	err := c.loadData()
	if err != nil && !errors.As(err, &FileNotFoundError{}) {
		return err
	}
	c.dataIsLoaded = true
	return nil
}

func (c *File) loadData() error {
	b, err := os.ReadFile(c.FullPath)
	if os.IsNotExist(err) {
		return FileNotFoundError{c.FullPath}
	} else if err != nil {
		return err
	}
	if err = yaml.Unmarshal(b, &c.data); err != nil {
		return fmt.Errorf("error parsing config file %v: %v", c.FullPath, err)
	}
	if c.data == nil { // empty file.
		c.data = make(map[string]interface{})
	}
	return nil
}

func (c *File) save(key string) error {
	b, err := yaml.Marshal(c.data)
	if err != nil {
		return fmt.Errorf("error marshalling data while writing key %v to config file %v: %v", key, c.FullPath, err)
	}
	if err = makeDir(c.Dirname); err != nil {
		return err
	}
	return os.WriteFile(c.FullPath, b, 0600)
}
