package federation

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"time"

	"github.com/go-fed/httpsig"
	"github.com/goliatone/go-errors"
)

const rsaKeyBits = 2048

// KeyPair holds an actor's signing material in PEM form, which is how it is
// persisted and how the public half travels inside actor documents.
type KeyPair struct {
	PublicPEM  string
	PrivatePEM string
}

// GenerateKeyPair creates a fresh RSA-2048 key pair for a local actor.
func GenerateKeyPair() (*KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate actor key pair")
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode public key")
	}

	return &KeyPair{
		PublicPEM: string(pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: pubDER,
		})),
		PrivatePEM: string(pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})),
	}, nil
}

// ParsePublicKey decodes a PEM encoded PKIX public key as found in the
// publicKey field of actor documents.
func ParsePublicKey(pemKey string) (crypto.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, ErrMalformedObject.WithMetadata(map[string]any{
			"detail": "invalid public key pem block",
		})
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "failed to parse public key")
	}
	return pub, nil
}

// ParsePrivateKey decodes a PEM encoded PKCS#1 private key.
func ParsePrivateKey(pemKey string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, errors.New("invalid private key pem block", errors.CategoryValidation)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "failed to parse private key")
	}
	return key, nil
}

var signedHeaders = []string{httpsig.RequestTarget, "host", "date", "digest"}

// signRequest signs req as keyID over the request target, host, date and
// body digest. The signer computes and sets the Digest header from body.
func signRequest(req *http.Request, keyID string, privatePEM string, body []byte) error {
	key, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return err
	}

	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		signedHeaders,
		httpsig.Signature,
		0,
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build request signer")
	}

	if req.Header.Get("Date") == "" {
		req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	if req.Header.Get("Host") == "" {
		req.Header.Set("Host", req.URL.Host)
	}

	if err := signer.SignRequest(key, keyID, req, body); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to sign request")
	}
	return nil
}
