package main

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	authgate "github.com/authgate/authgate"
)

// fileDirectory is a file-backed user directory for deployments without an
// LDAP server: a JSON document mapping usernames to hashed passwords and
// profile details. Password updates are written back to the file.
type fileDirectory struct {
	mu    sync.Mutex
	path  string
	users map[string]*fileUser
}

type fileUser struct {
	// PasswordHash is hex(sha256(password)).
	PasswordHash string   `json:"password_hash"`
	Emails       []string `json:"emails,omitempty"`
	Groups       []string `json:"groups,omitempty"`
}

type directoryDocument struct {
	Users map[string]*fileUser `json:"users"`
}

func openFileDirectory(path string) (*fileDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc directoryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(doc.Users) == 0 {
		return nil, fmt.Errorf("%s defines no users", path)
	}

	return &fileDirectory{path: path, users: doc.Users}, nil
}

func (d *fileDirectory) Bind(_ context.Context, username, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[username]
	if !ok {
		return errors.New("unknown user")
	}

	sum := sha256.Sum256([]byte(password))
	hashed := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(hashed), []byte(user.PasswordHash)) != 1 {
		return errors.New("password mismatch")
	}
	return nil
}

func (d *fileDirectory) Search(_ context.Context, username string) (authgate.UserDetails, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[username]
	if !ok {
		return authgate.UserDetails{}, errors.New("unknown user")
	}
	return authgate.UserDetails{
		Emails: append([]string(nil), user.Emails...),
		Groups: append([]string(nil), user.Groups...),
	}, nil
}

func (d *fileDirectory) UpdatePassword(_ context.Context, username, newPassword string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[username]
	if !ok {
		return errors.New("unknown user")
	}

	sum := sha256.Sum256([]byte(newPassword))
	user.PasswordHash = hex.EncodeToString(sum[:])
	return d.persistLocked()
}

func (d *fileDirectory) persistLocked() error {
	data, err := json.MarshalIndent(directoryDocument{Users: d.users}, "", "  ")
	if err != nil {
		return err
	}

	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, d.path)
}
