package main

import (
	"encoding/json"
	"fmt"
	"os"

	authgate "github.com/authgate/authgate"
)

type policyDocument struct {
	DefaultPolicy []string            `json:"default_policy"`
	Groups        map[string][]string `json:"groups,omitempty"`
	Users         map[string][]string `json:"users,omitempty"`
}

func loadPolicy(path string) (authgate.AccessControlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return authgate.AccessControlConfig{}, err
	}

	var doc policyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return authgate.AccessControlConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}

	return authgate.AccessControlConfig{
		DefaultPolicy: doc.DefaultPolicy,
		Groups:        doc.Groups,
		Users:         doc.Users,
	}, nil
}
