package config

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/fpang/sagemaker-vision/internal/sagemaker"
)

// accessFile is the on-disk shape of the access JSON.
type accessFile struct {
	AccessKey       string `json:"access_key"`
	SecretAccessKey string `json:"secret_access_key"`
}

// LoadCredentials reads static AWS keys from the access JSON file.
// Only the path is logged, never the keys.
func LoadCredentials(path string) (sagemaker.Credentials, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return sagemaker.Credentials{}, configError("failed to read access JSON", err)
	}

	var f accessFile
	if err := json.Unmarshal(b, &f); err != nil {
		return sagemaker.Credentials{}, configError("failed to parse access JSON", err)
	}
	if f.AccessKey == "" {
		return sagemaker.Credentials{}, configError("access JSON is missing access_key", nil)
	}
	if f.SecretAccessKey == "" {
		return sagemaker.Credentials{}, configError("access JSON is missing secret_access_key", nil)
	}

	log.Debug().Str("file", path).Msg("AWS access keys loaded")
	return sagemaker.Credentials{AccessKey: f.AccessKey, SecretKey: f.SecretAccessKey}, nil
}
