package main

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Config holds everything loaded from pyrcd.json, plus the MOTD/rules text
// read alongside it.
//
// This mirrors System/configuration.py: a JSON file with "bind" and
// "server" sections, checked for required keys before use.
type Config struct {
	Bind struct {
		Address string `json:"address"`
		Port    int    `json:"port"`
	} `json:"bind"`

	Server struct {
		Debug        int    `json:"debug"`
		FQDN         string `json:"fqdn"`
		Name         string `json:"name"`
		ClientLimit  int    `json:"client_limit"`
		RecvBuffer   int    `json:"recv_buffer"`
		MOTDFile     string `json:"motd"`
		RulesFile    string `json:"rules"`
	} `json:"server"`

	// MOTD and Rules hold the content and modification time of the files
	// named by Server.MOTDFile / Server.RulesFile, resolved relative to the
	// configuration directory.
	MOTD  fileContent
	Rules fileContent
}

// fileContent is the content of a text file along with its mtime, used for
// MOTD/RULES numerics which report when the file was last touched.
type fileContent struct {
	Content  string
	Modified time.Time
}

// loadConfig reads dir/pyrcd.json, validates it has the sections and keys
// this server requires, and loads the MOTD/rules files it names.
func loadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, "pyrcd.json")

	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read configuration file %s", path)
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, errors.Wrap(err, "configuration file has invalid contents (not parsable JSON)")
	}

	if err := checkConfigKeys(generic); err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "configuration file could not be decoded")
	}

	cfg.MOTD, err = readTextFile(filepath.Join(dir, cfg.Server.MOTDFile))
	if err != nil {
		return nil, errors.Wrap(err, "could not read motd file")
	}

	cfg.Rules, err = readTextFile(filepath.Join(dir, cfg.Server.RulesFile))
	if err != nil {
		return nil, errors.Wrap(err, "could not read rules file")
	}

	return &cfg, nil
}

// requiredKeys names the top-level sections and their required keys. Any
// missing section or key aborts configuration loading.
var requiredKeys = map[string][]string{
	"bind":   {"address", "port"},
	"server": {"debug", "fqdn", "name", "client_limit", "recv_buffer", "motd", "rules"},
}

func checkConfigKeys(generic map[string]json.RawMessage) error {
	for section, keys := range requiredKeys {
		raw, exists := generic[section]
		if !exists {
			return errors.Errorf("missing required configuration section: %s", section)
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return errors.Wrapf(err, "section %s is not an object", section)
		}

		for _, key := range keys {
			if _, exists := fields[key]; !exists {
				return errors.Errorf("'%s' setting is missing from section [%s]", key, section)
			}
		}
	}

	return nil
}

func readTextFile(path string) (fileContent, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileContent{}, errors.Wrapf(err, "could not stat %s", path)
	}

	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return fileContent{}, errors.Wrapf(err, "could not read %s", path)
	}

	return fileContent{Content: string(raw), Modified: info.ModTime()}, nil
}
