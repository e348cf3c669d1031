// Package config loads the toolkit's defaults file: worker counts, key
// bit widths, the randomness device path, and the geolocation stamped
// into RSA block headers and signatures.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/go-ini/ini"
	"github.com/kardianos/osext"

	"github.com/ssviatko/dhmrsa/exception"
)

const (
	sectionRSA      = "dhmrsa.RSA"
	sectionDHM      = "dhmrsa.DHM"
	sectionLocation = "dhmrsa.Location"

	ConfigName = "dhmrsa.ini"
)

var ErrConfigNotFound = exception.New("config file not found in any search path")

// RSAConf holds the [dhmrsa.RSA] section.
type RSAConf struct {
	Bits    int    `ini:"Bits"`
	Workers int    `ini:"Workers"`
	UseCRT  bool   `ini:"UseCRT"`
	Device  string `ini:"Device"`
}

// DHMConf holds the [dhmrsa.DHM] section.
type DHMConf struct {
	Device string `ini:"Device"`
}

// LocationConf holds the [dhmrsa.Location] section stamped into every
// RSA block header and signature record this process produces.
type LocationConf struct {
	Latitude  float32 `ini:"Latitude"`
	Longitude float32 `ini:"Longitude"`
}

// Defaults returns the built-in configuration used when no file is
// found. Its device paths match entropy.DefaultDevice, the device
// entropy.Open falls back to for an empty path.
func Defaults() *Config {
	return &Config{
		RSA: RSAConf{
			Bits:    1536,
			Workers: runtime.NumCPU(),
			UseCRT:  true,
			Device:  "/dev/urandom",
		},
		DHM: DHMConf{
			Device: "/dev/urandom",
		},
		Location: LocationConf{},
	}
}

// Config is the parsed, fully mapped configuration file.
type Config struct {
	filepath string
	RSA      RSAConf
	DHM      DHMConf
	Location LocationConf
}

// searchPaths walks the usual configuration lookup order: cwd, the
// executable's own folder, the user's home directory, then /etc on
// non-Windows platforms.
func searchPaths(specified string) []string {
	if specified != "" {
		return []string{specified}
	}
	paths := []string{ConfigName}
	if ef, err := osext.ExecutableFolder(); err == nil {
		paths = append(paths, filepath.Join(ef, ConfigName))
	}
	var home string
	if u, err := user.Current(); err == nil {
		home = u.HomeDir
	} else {
		home = os.Getenv("HOME")
	}
	if home != "" {
		paths = append(paths, filepath.Join(home, ConfigName))
	}
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/dhmrsa/"+ConfigName)
	}
	return paths
}

// Load searches the usual locations for a config file (or just the
// path given, if non-empty) and maps it onto Defaults(). A missing
// file is not an error for the empty-path case: Load falls back to
// Defaults() silently, since every setting it covers already has a
// sane built-in value.
func Load(specified string) (*Config, error) {
	c := Defaults()

	var found string
	for _, p := range searchPaths(specified) {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			found = p
			break
		}
	}
	if found == "" {
		if specified != "" {
			return nil, ErrConfigNotFound.Apply(specified)
		}
		return c, nil
	}
	c.filepath = found

	iniInstance, err := ini.Load(found)
	if err != nil {
		return nil, err
	}

	if sec, err := iniInstance.GetSection(sectionRSA); err == nil {
		if err := sec.MapTo(&c.RSA); err != nil {
			return nil, err
		}
	}
	if sec, err := iniInstance.GetSection(sectionDHM); err == nil {
		if err := sec.MapTo(&c.DHM); err != nil {
			return nil, err
		}
	}
	if sec, err := iniInstance.GetSection(sectionLocation); err == nil {
		if err := sec.MapTo(&c.Location); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Path returns the file Load read from, or "" if it is running on
// Defaults() with nothing on disk.
func (c *Config) Path() string {
	return c.filepath
}

// WriteDefault writes a fresh config file populated with c's current
// values to path, for generating a starter file on first run.
func WriteDefault(path string, c *Config) error {
	newIni := ini.Empty()

	rsaSec, err := newIni.NewSection(sectionRSA)
	if err != nil {
		return err
	}
	if err := rsaSec.ReflectFrom(&c.RSA); err != nil {
		return err
	}

	dhmSec, err := newIni.NewSection(sectionDHM)
	if err != nil {
		return err
	}
	if err := dhmSec.ReflectFrom(&c.DHM); err != nil {
		return err
	}

	locSec, err := newIni.NewSection(sectionLocation)
	if err != nil {
		return err
	}
	if err := locSec.ReflectFrom(&c.Location); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = newIni.WriteTo(f)
	return err
}

// IsNotExist reports whether path names a file that does not exist.
func IsNotExist(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}
