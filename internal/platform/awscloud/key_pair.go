package awscloud

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"golang.org/x/crypto/ssh"
)

// ErrKeyMaterialMissing means the key pair exists remotely but its private
// key is not on local disk, so nothing can log in to the instance.
var ErrKeyMaterialMissing = errors.New("private key file missing for existing key pair")

// ErrKeyMaterialInvalid means the private key is not a parseable key.
var ErrKeyMaterialInvalid = errors.New("private key does not parse")

// KeyPair is an EC2 key pair with its local private key.
type KeyPair struct {
	Name        string
	ID          string
	PEMPath     string
	Fingerprint string // SHA256 fingerprint of the public key
}

// EnsureKeyPair returns the key pair name, creating it and writing its
// private key to pemPath (mode 0600) if absent. In both cases a parseable
// private key must exist at pemPath afterwards.
func (c *Client) EnsureKeyPair(ctx context.Context, name, pemPath string) (*KeyPair, error) {
	return (&EnsureOperation[*KeyPair]{
		Name:         name,
		ResourceType: "key pair",
		Get: func(ctx context.Context) (*KeyPair, bool, error) {
			out, err := c.ec2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{KeyNames: []string{name}})
			if err != nil {
				if IsNotFound(err) {
					return nil, false, nil
				}
				return nil, false, err
			}
			if len(out.KeyPairs) == 0 {
				return nil, false, nil
			}
			return &KeyPair{Name: name, ID: aws.ToString(out.KeyPairs[0].KeyPairId), PEMPath: pemPath}, true, nil
		},
		Create: func(ctx context.Context) (*KeyPair, error) {
			out, err := c.ec2.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{
				KeyName:   aws.String(name),
				KeyType:   types.KeyTypeRsa,
				KeyFormat: types.KeyFormatPem,
			})
			if err != nil {
				return nil, err
			}
			material := aws.ToString(out.KeyMaterial)
			if _, err := fingerprint([]byte(material)); err != nil {
				return nil, fmt.Errorf("key material returned for %s: %w", name, err)
			}
			if err := writePrivateKey(pemPath, material); err != nil {
				return nil, err
			}
			c.log.Info("saved private key", "path", pemPath)
			return &KeyPair{Name: name, ID: aws.ToString(out.KeyPairId), PEMPath: pemPath}, nil
		},
		Verify: func(kp *KeyPair, _ bool) error {
			fp, err := verifyPrivateKey(kp.PEMPath)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				err = fmt.Errorf("%w: %s", ErrKeyMaterialMissing, kp.PEMPath)
			case err != nil:
				err = fmt.Errorf("%s: %w", kp.PEMPath, err)
			}
			if err != nil {
				return fmt.Errorf("%w\n\nDelete the remote key pair and retry:\n\n$ aws --region %s ec2 delete-key-pair --key-name %s",
					err, c.region, kp.Name)
			}
			kp.Fingerprint = fp
			return nil
		},
	}).Execute(ctx, c)
}

// DeleteKeyPair removes the remote key pair and the local private key.
func (c *Client) DeleteKeyPair(ctx context.Context, name, pemPath string) error {
	err := (&DeleteOperation{
		Name:         name,
		ResourceType: "key pair",
		Delete: func(ctx context.Context) error {
			_, err := c.ec2.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{KeyName: aws.String(name)})
			return err
		},
	}).Execute(ctx, c)
	if err != nil {
		return err
	}

	if err := os.Remove(pemPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing private key file: %w", err)
	}
	return nil
}

func writePrivateKey(path, material string) error {
	if material == "" {
		return errors.New("create key pair returned no key material")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	// #nosec G304
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	if _, err := f.WriteString(material); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return fmt.Errorf("setting key file permissions: %w", err)
	}
	return f.Close()
}

// PrivateKeyFingerprint returns the SHA256 fingerprint of the public half
// of the private key at path.
func PrivateKeyFingerprint(path string) (string, error) {
	return verifyPrivateKey(path)
}

func verifyPrivateKey(path string) (string, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fingerprint(data)
}

func fingerprint(pemBytes []byte) (string, error) {
	signer, err := ssh.ParsePrivateKey(pemBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeyMaterialInvalid, err)
	}
	return ssh.FingerprintSHA256(signer.PublicKey()), nil
}
