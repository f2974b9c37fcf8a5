package gcpkms

import (
	"fmt"
	"os"
)

// Key consists of required information to retrieve the CGP KMS Key path.
type Key struct {
	// Keyring is the name of your KMS keyring.
	Keyring string `json:"Keyring" mapstructure:"keyring"`

	// Name is the name of the key in the Keyring.
	Name string `json:"Name" mapstructure:"name"`

	// Version is the version of the key.
	Version string `json:"Version" mapstructure:"version"`
}

func (k Key) isValid() bool {
	return k.Keyring != "" && k.Name != "" && k.Version != ""
}

// Config represents required information to create a Google Cloud KMS client.
type Config struct {
	// ProjectID is the ID of the working GCP project.
	ProjectID string `json:"ProjectID" mapstructure:"project_id"`

	// LocationID is the region ID of the project.
	//
	// Example: us-west1.
	LocationID string `json:"LocationID" mapstructure:"location_id"`

	// CredentialLocation is the absolute path of the credential file downloaded from the GCP.
	//
	// Example: "/Users/SomeUser/.cred/gcp-credential.json".
	// Leave this field empty to fall back to `GOOGLE_APPLICATION_CREDENTIALS`, or to the ambient
	// application default credentials.
	CredentialLocation string `json:"CredentialLocation,omitempty" mapstructure:"credential_location"`

	// Key is the detail of the GCP KMS key.
	Key Key `json:"Key" mapstructure:"key"`

	// ChainID is the ID of the target EVM chain. Zero leaves the signer unbound until it is
	// connected to a provider.
	//
	// See https://chainlist.org.
	ChainID uint64 `json:"ChainID" mapstructure:"chain_id"`
}

// IsValid checks if a Config is valid.
func (cfg Config) IsValid() (bool, error) {
	if cfg.ProjectID == "" {
		return false, fmt.Errorf("empty ProjectID")
	}

	if cfg.LocationID == "" {
		return false, fmt.Errorf("empty LocationID")
	}

	if !cfg.Key.isValid() {
		return false, fmt.Errorf("invalid Key")
	}

	return true, nil
}

// KeyName returns the full resource name of the key version.
func (cfg Config) KeyName() string {
	return fmt.Sprintf("projects/%s/locations/%s/keyRings/%s/cryptoKeys/%s/cryptoKeyVersions/%s",
		cfg.ProjectID, cfg.LocationID, cfg.Key.Keyring, cfg.Key.Name, cfg.Key.Version)
}

func (cfg Config) credentialLocation() string {
	if cfg.CredentialLocation != "" {
		return cfg.CredentialLocation
	}

	return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
}
