package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// Archive magic prefix for encrypted objects.
var gcmMagic = []byte("GCM3NCR0")

// DeckArchive stores exported deck files in S3, optionally encrypted at rest
// with a passphrase-derived key.
type DeckArchive struct {
	client     *s3.Client
	bucket     string
	passphrase string
}

func NewDeckArchive(ctx context.Context, bucket, passphrase string) (*DeckArchive, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &DeckArchive{
		client:     s3.NewFromConfig(cfg),
		bucket:     bucket,
		passphrase: passphrase,
	}, nil
}

// Upload stores a local deck artifact under decks/<date>/<filename> and
// returns the object location.
func (a *DeckArchive) Upload(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}

	encrypted := false
	if a.passphrase != "" {
		data, err = encryptGCM(data, a.passphrase)
		if err != nil {
			return "", fmt.Errorf("encrypt artifact: %w", err)
		}
		encrypted = true
	}

	key := fmt.Sprintf("decks/%s/%s", time.Now().UTC().Format("2006-01-02"), filepath.Base(path))
	meta := map[string]string{
		"name":      filepath.Base(path),
		"encrypted": fmt.Sprintf("%t", encrypted),
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(a.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: meta,
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	loc := "s3://" + a.bucket + "/" + key
	log.Info().Str("location", loc).Bool("encrypted", encrypted).Int("size", len(data)).Msg("deck archived to s3")
	return loc, nil
}

// Download fetches an archived deck and decrypts it when needed.
func (a *DeckArchive) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object: %w", err)
	}

	if bytes.HasPrefix(data, gcmMagic) {
		if a.passphrase == "" {
			return nil, fmt.Errorf("object %s is encrypted and no passphrase is configured", key)
		}
		return decryptGCM(data, a.passphrase)
	}
	return data, nil
}

// encryptGCM seals data as magic(8) + salt(16) + nonce(12) + ciphertext,
// deriving the key from the passphrase with PBKDF2-SHA256.
func encryptGCM(data []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	gcm, err := gcmFor(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(gcmMagic)+len(salt)+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, gcmMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

func decryptGCM(data []byte, passphrase string) ([]byte, error) {
	if len(data) < 8+16+12 {
		return nil, fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}
	salt := data[8:24]
	nonce := data[24:36]
	ciphertext := data[36:]

	gcm, err := gcmFor(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func gcmFor(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, 100000, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
