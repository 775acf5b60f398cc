// Package crypto implements common crypto operations used to verify SGX/TDX quotes.
package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrMalformedSignature is returned when a signature is not a valid raw ECDSA P-256
	// signature, regardless of key: wrong length, or r/s outside [1, N-1].
	ErrMalformedSignature = errors.New("malformed ECDSA signature")

	// ErrSignatureMismatch is returned when a well-formed signature does not verify
	// under the given public key.
	ErrSignatureMismatch = errors.New("failed to verify signature using ECDSA public key")
)

// BuildECDSAPublicKey builds an ECDSA public key from a byte slice.
func BuildECDSAPublicKey(rawPublicKey [64]byte) *ecdsa.PublicKey {
	key := new(ecdsa.PublicKey)
	key.Curve = elliptic.P256()

	// construct the key manually...
	key.X = new(big.Int).SetBytes(rawPublicKey[:32])
	key.Y = new(big.Int).SetBytes(rawPublicKey[32:64])

	return key
}

// VerifyECDSASignature verifies a raw r||s ECDSA signature over data
// using the provided public key.
func VerifyECDSASignature(publicKey crypto.PublicKey, data, signature []byte) error {
	signingKey, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return errors.New("signing cert public key is not an ECDSA key")
	}
	if signingKey.X == nil || !signingKey.Curve.IsOnCurve(signingKey.X, signingKey.Y) {
		return errors.New("public key is not a point on the curve")
	}
	if len(signature) != 64 {
		return fmt.Errorf("%w: expected 64 bytes but got %d bytes", ErrMalformedSignature, len(signature))
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:64])

	curveOrder := signingKey.Curve.Params().N
	if r.Sign() <= 0 || s.Sign() <= 0 || r.Cmp(curveOrder) >= 0 || s.Cmp(curveOrder) >= 0 {
		return fmt.Errorf("%w: r and s must be in [1, N-1]", ErrMalformedSignature)
	}

	toVerify := sha256.Sum256(data)
	if !ecdsa.Verify(signingKey, toVerify[:], r, s) {
		return ErrSignatureMismatch
	}
	return nil
}

// ParseCertificates parses a list of DER encoded certificates,
// e.g. the ones split out of a quote's certification data.
func ParseCertificates(derCerts [][]byte) ([]*x509.Certificate, error) {
	certs := make([]*x509.Certificate, len(derCerts))
	for i, derCert := range derCerts {
		cert, err := x509.ParseCertificate(derCert)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate %d of %d: %w", i+1, len(derCerts), err)
		}
		certs[i] = cert
	}
	return certs, nil
}

// ParsePEMCertificateChain parses a certificate chain from a PEM-encoded byte slice.
func ParsePEMCertificateChain(certChainPEM []byte) ([]*x509.Certificate, error) {
	var signingChain []*x509.Certificate
	for block, rest := pem.Decode([]byte(certChainPEM)); block != nil; block, rest = pem.Decode(rest) {
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate from PEM: %w", err)
		}

		signingChain = append(signingChain, cert)
	}
	return signingChain, nil
}

// MustParsePEMCertificate parses a single certificate from a PEM-encoded byte slice.
// If multiple certificates are present, only the first one is returned.
// It panics if the certificate is invalid or the PEM data contains no certificates.
func MustParsePEMCertificate(certPEM []byte) *x509.Certificate {
	certs, err := ParsePEMCertificateChain(certPEM)
	if err != nil {
		panic(err)
	}
	if len(certs) == 0 {
		panic("expected at least one certificate")
	}
	return certs[0]
}
