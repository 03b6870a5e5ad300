package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

type awsConfig struct {
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	SessionToken    string `toml:"session_token"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	ImportRole      string `toml:"import_role"`
}

type azureConfig struct {
	StorageAccount   string `toml:"storage_account"`
	StorageAccessKey string `toml:"storage_access_key"`
	ConnectionString string `toml:"connection_string"`
	Container        string `toml:"container"`
	UploadThreads    int    `toml:"upload_threads"`
}

type config struct {
	AWS   awsConfig   `toml:"aws"`
	Azure azureConfig `toml:"azure"`
}

func loadConfig(path string) (*config, error) {
	var cfg config
	if path == "" {
		return &cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("cannot load the configuration: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown configuration keys: %v", undecoded)
	}
	return &cfg, nil
}
