package secret

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.mozilla.org/pkcs7"
	"gopkg.in/yaml.v3"

	"servicenow-cmdb-integration/config"
	"servicenow-cmdb-integration/internal/logger"
)

// Decrypter turns a configured credential into its plain-text value.
type Decrypter interface {
	Decrypt(raw string) (string, error)
}

// PassThrough returns credentials unchanged, apart from a trailing newline.
type PassThrough struct{}

func (PassThrough) Decrypt(raw string) (string, error) {
	return strings.TrimSuffix(raw, "\n"), nil
}

// encBlock matches ENC[PKCS7,...] and ENC[...] blocks. Folded YAML scalars may
// leave whitespace inside the base64 payload.
var encBlock = regexp.MustCompile(`ENC\[(?:(\w+),)?([A-Za-z0-9+/=\s]+)\]`)

// Eyaml decrypts hiera-eyaml PKCS7 blocks embedded in a credential.
type Eyaml struct {
	cert *x509.Certificate
	key  crypto.PrivateKey
}

// eyamlFile mirrors the keys hiera-eyaml reads from its config.yaml.
type eyamlFile struct {
	PrivateKey string `yaml:"pkcs7_private_key"`
	PublicKey  string `yaml:"pkcs7_public_key"`
}

// NewDecrypter picks a Decrypter from the hiera-eyaml settings. Explicit key paths win
// over the eyaml config file; with neither present credentials are used as-is.
func NewDecrypter(cfg config.EyamlConfig, log *logger.Logger) (Decrypter, error) {
	privateKey, publicKey := cfg.PrivateKey, cfg.PublicKey

	if privateKey == "" && publicKey == "" && cfg.ConfigFile != "" {
		data, err := os.ReadFile(cfg.ConfigFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Debug("hiera-eyaml config not found, credentials are used as-is",
				"path", cfg.ConfigFile)
			return PassThrough{}, nil
		case err != nil:
			return nil, fmt.Errorf("error reading the hiera-eyaml config: %w", err)
		}

		var file eyamlFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("error reading the hiera-eyaml config: %w", err)
		}
		privateKey, publicKey = file.PrivateKey, file.PublicKey
	}

	if privateKey == "" && publicKey == "" {
		return PassThrough{}, nil
	}
	if privateKey == "" || publicKey == "" {
		return nil, fmt.Errorf("hiera-eyaml needs both pkcs7_private_key and pkcs7_public_key")
	}

	log.Debug("using hiera-eyaml keys", "private_key", privateKey, "public_key", publicKey)
	return LoadEyaml(privateKey, publicKey)
}

// LoadEyaml reads a PEM private key and certificate pair.
func LoadEyaml(privateKeyPath, publicKeyPath string) (*Eyaml, error) {
	keyPEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pkcs7 private key: %w", err)
	}
	certPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pkcs7 public key: %w", err)
	}
	return NewEyaml(keyPEM, certPEM)
}

// NewEyaml builds an Eyaml decrypter from PEM encoded key material.
func NewEyaml(keyPEM, certPEM []byte) (*Eyaml, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("pkcs7 public key is not PEM encoded")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pkcs7 public key: %w", err)
	}

	block, _ = pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("pkcs7 private key is not PEM encoded")
	}
	key, err := parsePrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pkcs7 private key: %w", err)
	}

	return &Eyaml{cert: cert, key: key}, nil
}

func parsePrivateKey(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	return x509.ParsePKCS8PrivateKey(der)
}

// Decrypt replaces every encrypted block in raw with its plain text. Text outside
// the blocks is kept, so plain-text credentials pass through unchanged.
func (e *Eyaml) Decrypt(raw string) (string, error) {
	raw = strings.TrimSuffix(raw, "\n")

	var decryptErr error
	out := encBlock.ReplaceAllStringFunc(raw, func(block string) string {
		if decryptErr != nil {
			return block
		}
		m := encBlock.FindStringSubmatch(block)
		if m[1] != "" && !strings.EqualFold(m[1], "PKCS7") {
			decryptErr = fmt.Errorf("unsupported hiera-eyaml encryption method %s", m[1])
			return block
		}
		plain, err := e.decryptBlock(m[2])
		if err != nil {
			decryptErr = err
			return block
		}
		return plain
	})
	if decryptErr != nil {
		return "", decryptErr
	}
	return out, nil
}

func (e *Eyaml) decryptBlock(payload string) (string, error) {
	payload = strings.Join(strings.Fields(payload), "")
	der, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("invalid hiera-eyaml block: %w", err)
	}

	p7, err := pkcs7.Parse(der)
	if err != nil {
		return "", fmt.Errorf("invalid hiera-eyaml block: %w", err)
	}
	plain, err := p7.Decrypt(e.cert, e.key)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt hiera-eyaml block: %w", err)
	}
	return string(plain), nil
}
