package connectivity

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
)

// Credentials are the station settings received during provisioning.
type Credentials struct {
	SSID       string `json:"ssid"`
	Passphrase string `json:"passphrase"`
}

// CredentialStore keeps the station credentials in a YAML file.
type CredentialStore struct {
	path string
}

func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

func (s *CredentialStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *CredentialStore) Load() (Credentials, error) {
	var creds Credentials

	dat, err := ioutil.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return creds, ErrNotProvisioned
	}
	if err != nil {
		return creds, err
	}
	if err := yaml.Unmarshal(dat, &creds); err != nil {
		return creds, err
	}
	if creds.SSID == "" {
		return creds, ErrNotProvisioned
	}
	return creds, nil
}

func (s *CredentialStore) Save(creds Credentials) error {
	dat, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := ioutil.WriteFile(tmp, dat, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Clear forgets the stored credentials. Clearing an empty store is not an error.
func (s *CredentialStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
